package textual

import (
	"strings"
	"unicode"
)

// MaxKeywords caps how many tokens feed the fuzzy filter.
const MaxKeywords = 5

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// interrogatives
		"que", "qué", "cual", "cuál", "cuales", "cuáles", "cuanto", "cuánto", "cuanta", "cuánta",
		"cuantos", "cuántos", "cuantas", "cuántas", "como", "cómo", "donde", "dónde", "cuando", "cuándo",
		"quien", "quién", "quienes", "quiénes",
		// determiners and pronouns
		"este", "esta", "esto", "estos", "estas", "ese", "esa", "eso", "esos", "esas",
		"aquel", "aquella", "los", "las", "una", "uno", "unos", "unas", "mis", "tus", "sus",
		"nuestro", "nuestra", "nuestros", "nuestras", "todo", "toda", "todos", "todas",
		// prepositions and conjunctions
		"del", "por", "para", "con", "sin", "sobre", "entre", "desde", "hasta", "hacia",
		"pero", "porque", "tambien", "también",
		// frequent verbs and adverbs
		"hay", "fue", "fueron", "son", "era", "eran", "ser", "estar", "está", "están",
		"tengo", "tiene", "tenemos", "han", "hemos", "muy", "más", "mas", "menos",
		"algo", "alguna", "alguno", "algún", "dame", "dime", "muestra", "muestrame", "muéstrame",
		"quiero", "puedes", "favor",
	} {
		stopWords[w] = struct{}{}
	}
}

// Normalize lowercases text, turns punctuation and symbols into spaces and
// collapses whitespace.
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}

// ExtractKeywords returns at most MaxKeywords content tokens in the order they
// appear in the question.
func ExtractKeywords(question string) []string {
	var keywords []string
	for _, tok := range strings.Fields(Normalize(question)) {
		if len([]rune(tok)) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if isDigits(tok) {
			continue
		}
		keywords = append(keywords, tok)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
