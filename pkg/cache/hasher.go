package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"coassign/pkg/domain"
)

// GraphHash вычисляет хеш графа для использования как ключ кэша.
//
// Хеш считается по канонической форме в исходной ориентации: размеры долей,
// кратности и отсортированный список рёбер. Порядок добавления рёбер на
// хеш не влияет, кратные рёбра учитываются.
func GraphHash(g *domain.BipartiteGraph) string {
	if g == nil {
		return ""
	}
	hash := sha256.Sum256(graphToCanonical(g))
	return hex.EncodeToString(hash[:16])
}

// graphToCanonical создаёт детерминированное представление графа
func graphToCanonical(g *domain.BipartiteGraph) []byte {
	edges := g.Edges()
	slices.SortFunc(edges, func(a, b domain.Edge) int {
		if a.Left != b.Left {
			return a.Left - b.Left
		}
		if a.Right != b.Right {
			return a.Right - b.Right
		}
		switch {
		case a.Weight < b.Weight:
			return -1
		case a.Weight > b.Weight:
			return 1
		}
		return 0
	})

	l, r := g.OriginalSizes()
	buf := make([]byte, 0, 32+8*(l+r)+24*len(edges))

	buf = append(buf, "l:"...)
	buf = strconv.AppendInt(buf, int64(l), 10)
	buf = append(buf, ",r:"...)
	buf = strconv.AppendInt(buf, int64(r), 10)
	buf = append(buf, ';')

	buf = append(buf, "ml:"...)
	for _, m := range g.LeftMultiplicities() {
		buf = strconv.AppendInt(buf, m, 10)
		buf = append(buf, ',')
	}
	buf = append(buf, ";mr:"...)
	for _, m := range g.RightMultiplicities() {
		buf = strconv.AppendInt(buf, m, 10)
		buf = append(buf, ',')
	}
	buf = append(buf, ';')

	for _, e := range edges {
		buf = append(buf, 'e', ':')
		buf = strconv.AppendInt(buf, int64(e.Left), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(e.Right), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, e.Weight, 10)
		buf = append(buf, ';')
	}
	return buf
}

// OptionsHash короткий хеш параметров решателя, влияющих на результат
func OptionsHash(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	return ShortHash([]byte(strings.Join(parts, "|")))
}

// BuildSolveKey строит ключ кэша для результата решения
func BuildSolveKey(graphHash, optionsHash string) string {
	if optionsHash == "" {
		return "solve:" + graphHash
	}
	return "solve:" + graphHash + ":" + optionsHash
}

// ShortHash короткий хеш (16 символов)
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
