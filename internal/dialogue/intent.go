package dialogue

import (
	"regexp"
	"strings"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
)

type intent int

const (
	intentUnknown intent = iota
	intentAffirm
	intentDecline
)

var wordSepRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// words returns the normalized words of s without punctuation.
func words(s string) []string {
	return strings.Fields(wordSepRe.ReplaceAllString(catalog.Normalize(s), " "))
}

var (
	affirmWords   = set("si", "sip", "claro", "ok", "okay", "okey", "dale", "correcto", "confirmo", "confirmado", "yes", "listo", "va", "perfecto", "exacto", "bueno")
	affirmPhrases = []string{"de acuerdo", "por supuesto", "esta bien", "todo bien"}
	declineWords  = set("no", "nop", "nel", "cancelar", "cancela", "cancelalo", "cancelo", "anular", "anula")

	pickupWords   = set("recoger", "recojo", "recogo", "local", "tienda", "pickup", "llevar", "recogerlo")
	deliveryWords = set("delivery", "domicilio", "entrega", "envio", "enviar", "envien", "enviarlo", "reparto", "casa")
	noiseWords    = set("a", "al", "en", "el", "la", "mi", "para", "por", "favor", "quiero", "prefiero", "deseo", "distrito", "de", "y", "con", "me", "lo", "porfa", "gracias", "mejor")
)

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// classify reads a yes/no answer from the first words of s.
func classify(s string) intent {
	w := words(s)
	if len(w) == 0 {
		return intentUnknown
	}
	joined := strings.Join(w, " ")
	for _, p := range affirmPhrases {
		if joined == p || strings.HasPrefix(joined, p+" ") {
			return intentAffirm
		}
	}
	switch {
	case declineWords[w[0]]:
		return intentDecline
	case affirmWords[w[0]]:
		return intentAffirm
	}
	return intentUnknown
}

func containsAny(w []string, vocab map[string]bool) bool {
	for _, x := range w {
		if vocab[x] {
			return true
		}
	}
	return false
}

// onlyDeliveryTalk reports whether w carries nothing but delivery and
// connector words, i.e. no district name attempt.
func onlyDeliveryTalk(w []string) bool {
	for _, x := range w {
		if !deliveryWords[x] && !noiseWords[x] {
			return false
		}
	}
	return true
}

// findDistrict returns the catalog district named in s. A district matches
// when it is the whole text or appears in it as whole words; the longest
// match wins.
func findDistrict(c *catalog.Catalog, s string) (catalog.District, bool) {
	text := " " + strings.Join(words(s), " ") + " "
	var (
		best    catalog.District
		bestLen int
	)
	for d := range c.Districts() {
		key := strings.Join(words(d.Name), " ")
		if key == "" || !strings.Contains(text, " "+key+" ") {
			continue
		}
		if len(key) > bestLen {
			best, bestLen = d, len(key)
		}
	}
	return best, bestLen > 0
}
