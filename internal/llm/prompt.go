package llm

import "strings"

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const maxPromptChars = 6000

// Qwen behaves best with a terse instruction; Mistral needs the output
// contract spelled out or it wraps the JSON in prose.
const (
	systemPromptConcise = "Vous êtes un assistant expert en factures vétérinaires. " +
		"Extrayez en JSON uniquement un tableau 'lignes' et une clé 'montant_total'. " +
		"Chaque ligne doit contenir 'animal_uid' (string), 'montant_ht' (float), 'description' (string)."

	systemPromptDetailed = "Vous êtes un assistant vétérinaire spécialisé dans l'analyse de factures. " +
		"À partir d'un texte brut OCR, produisez un objet JSON contenant :\n" +
		"- 'lignes' : liste d'objets { 'animal_uid': str, 'montant_ht': float, 'description': str }\n" +
		"- 'montant_total': somme totale des montants HT\n" +
		"Renvoie uniquement un JSON valide, sans commentaire."
)

// BuildMessages assembles the system/user turns for an extraction call.
// detailed selects the longer prompt used for the secondary model.
func BuildMessages(ocrText string, detailed bool) []Message {
	sys := systemPromptConcise
	if detailed {
		sys = systemPromptDetailed
	}
	return []Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: truncate(strings.TrimSpace(ocrText), maxPromptChars)},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
