package policy

import "github.com/ulrichando/ParentShield/internal/domain"

// AIListID identifies the AI assistant category.
const AIListID = "ai"

// NewAIList returns AI assistant clients and services.
// Processes are enabled by the ai toggle; domains by ai or dns.
func NewAIList() BlockList {
	return &staticList{
		id:             AIListID,
		name:           "AI assistants",
		processes:      lower(aiProcesses...),
		domains:        lower(aiDomains...),
		processToggles: []domain.Feature{domain.FeatureAI},
		domainToggles:  []domain.Feature{domain.FeatureAI, domain.FeatureDNS},
	}
}

var aiProcesses = []string{
	"chatgpt", "chatgpt.exe", "ChatGPT.app",
	"claude", "claude.exe", "Claude.app",
	"copilot", "copilot.exe",
	"cursor", "cursor.exe", "Cursor.app",
	"codeium", "codeium.exe",
	"tabnine", "tabnine.exe",
	"pieces", "pieces.exe", "Pieces.app",
	"raycast", "Raycast.app",
	"notion", "notion.exe", "Notion.app",
}

var aiDomains = []string{
	"chat.openai.com", "chatgpt.com", "openai.com", "api.openai.com",
	"claude.ai", "anthropic.com", "api.anthropic.com",
	"gemini.google.com", "bard.google.com", "ai.google", "aistudio.google.com",
	"generativelanguage.googleapis.com", "aiplatform.googleapis.com",
	"us-central1-aiplatform.googleapis.com", "europe-west1-aiplatform.googleapis.com",
	"asia-east1-aiplatform.googleapis.com", "notebooklm.google.com", "notebooklm.google",
	"cloudaicompanion.googleapis.com", "cloudcode-pa.googleapis.com", "codecompanion-pa.googleapis.com",
	"us-cloudaicompanion.googleapis.com", "europe-cloudaicompanion.googleapis.com",
	"asia-cloudaicompanion.googleapis.com",
	"copilot.microsoft.com", "copilot.github.com",
	"perplexity.ai", "poe.com", "character.ai", "beta.character.ai", "you.com",
	"midjourney.com", "leonardo.ai", "ideogram.ai", "playground.ai", "dreamstudio.ai", "stability.ai",
	"dall-e.com", "craiyon.com", "jasper.ai", "rytr.me", "copy.ai", "writesonic.com", "quillbot.com",
	"replit.com", "cursor.com", "codeium.com", "api.codeium.com", "server.codeium.com",
	"tabnine.com", "api.tabnine.com", "sourcegraph.com", "cody.sourcegraph.com",
	"codewhisperer.amazonaws.com", "q.us-east-1.amazonaws.com", "q.amazonaws.com",
	"ai.jetbrains.com", "grazie.ai", "grazie.aws.intellij.net", "continue.dev", "api.continue.dev",
	"pieces.app", "api.pieces.app", "blackbox.ai", "useblackbox.io", "api.blackbox.ai",
	"askcodi.com", "api.askcodi.com", "bito.ai", "api.bito.ai", "codiga.io", "api.codiga.io",
	"stenography.dev", "mintlify.com", "api.mintlify.com", "supermaven.com", "api.supermaven.com",
	"phind.com", "api.phind.com", "kite.com", "huggingface.co", "replicate.com", "runpod.io",
	"together.ai", "groq.com", "fireworks.ai", "cohere.com", "ai21.com",
}
