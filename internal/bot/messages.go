package bot

// User-facing replies.
var (
	msgWelcome = Phrase{
		TR: "👋 Merhaba! AskzenBot'a hoş geldin. Komut listesi için /help yazabilirsin.",
		EN: "👋 Hello! Welcome to AskzenBot. Type /help for commands.",
	}

	msgUnknownCommand = Phrase{
		TR: "Bilinmeyen komut: /%s. Komut listesi için /help yazabilirsin.",
		EN: "Unknown command: /%s. Type /help for commands.",
	}

	msgRateLimited = Phrase{
		TR: "⏳ Çok hızlı gidiyorsun. Lütfen biraz bekle.",
		EN: "⏳ You're sending requests too fast. Please slow down.",
	}

	msgChatFailed = Phrase{
		TR: "❌ GPT yanıtı alınamadı. Lütfen daha sonra tekrar deneyin.",
		EN: "❌ Could not generate a response. Try again later.",
	}

	msgAbout = Phrase{
		TR: "AskzenBot v1.1 - Ücretsiz OpenRouter AI destekli, hızlı ve çok özellikli bir Telegram botudur.",
		EN: "AskzenBot v1.1 - A fast, multi-feature Telegram bot powered by free OpenRouter AI.",
	}

	msgUsage       = Phrase{TR: "Kullanım: %s", EN: "Usage: %s"}
	msgLangSet     = Phrase{TR: "Dil tercihin Türkçe olarak ayarlandı.", EN: "Language set to English."}
	msgReset       = Phrase{TR: "Sohbet geçmişi temizlendi.", EN: "Conversation history cleared."}
	msgStats       = Phrase{TR: "Toplam %d istek gönderdiniz.", EN: "You have sent %d requests."}
	msgTodoAdded   = Phrase{TR: "Listeye eklendi.", EN: "Added to to-do list."}
	msgTodoEmpty   = Phrase{TR: "Yapılacak listeniz boş.", EN: "Your to-do list is empty."}
	msgTodoCleared = Phrase{TR: "Yapılacak liste temizlendi.", EN: "To-do list cleared."}
	msgTime        = Phrase{TR: "Şu anki zaman: %s", EN: "Current time: %s"}
	msgHeads       = Phrase{TR: "Yazı", EN: "Heads"}
	msgTails       = Phrase{TR: "Tura", EN: "Tails"}
	msgCalcInvalid = Phrase{TR: "❌ Geçersiz ifade.", EN: "❌ Invalid expression."}
	msgUserInfo    = Phrase{TR: "ID: %s\nAd: %s\nKullanıcı adı: %s", EN: "ID: %s\nName: %s\nUsername: %s"}
	msgNone        = Phrase{TR: "yok", EN: "none"}
	msgHelpHeader  = Phrase{TR: "Komutlar:", EN: "Commands:"}

	// systemPrompt is sent ahead of the conversation history for free text.
	systemPrompt = Phrase{
		TR: "Sen yardımcı bir asistansın. Kullanıcının dilinde yanıt ver.",
		EN: "You are a helpful assistant. Reply in the user's language.",
	}
)
