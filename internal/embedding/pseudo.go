package embedding

import (
	"hash/fnv"
	"math"
)

// pseudoPrefixRunes bounds how much of a text feeds the pseudo-embedding.
const pseudoPrefixRunes = 256

// PseudoEmbed derives a deterministic unit vector from a hash of the first
// 256 runes of text. Similar texts do not get similar vectors; it only keeps
// the pipeline operable without a model.
func PseudoEmbed(text string, dimension int) []float64 {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	runes := []rune(text)
	if len(runes) > pseudoPrefixRunes {
		runes = runes[:pseudoPrefixRunes]
	}
	prefix := []byte(string(runes))

	vec := make([]float64, dimension)
	var norm float64
	for i := range vec {
		h := fnv.New64a()
		_, _ = h.Write([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
		_, _ = h.Write(prefix)
		v := float64(h.Sum64()%1_000_000) / 1_000_000
		vec[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func pseudoEmbedAll(texts []string, dimension int) [][]float64 {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = PseudoEmbed(t, dimension)
	}
	return out
}
