package merge

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MergeText performs a three-way line merge of base/local/remote,
// following spec.md §4.6.2's "treat both string values as text and
// perform a three-way line diff3 using the ancestor as base; on hunk
// conflict fall back to the configured resolution." It is built on top
// of sergi/go-diff's two-way DiffMain by diffing base against each side
// independently (in a shared line-to-rune alphabet, the same trick
// DiffMain's own DiffLinesToChars helper uses for two texts, extended
// here to three) and then walking both edit scripts in lockstep.
//
// Non-overlapping hunks from either side are carried over unchanged.
// Overlapping hunks are resolved per strategy and reported via the
// second return value.
func MergeText(base, local, remote string, strategy ConflictResolutionStrategy) (merged string, conflicted bool) {
	if local == remote {
		return local, false
	}
	if base == local {
		return remote, false
	}
	if base == remote {
		return local, false
	}

	encoded, lineArray := linesToRunes(base, local, remote)
	dmp := diffmatchpatch.New()
	diffsLocal := dmp.DiffMain(encoded[0], encoded[1], false)
	diffsRemote := dmp.DiffMain(encoded[0], encoded[2], false)

	opsLocal := buildReplaceOps(diffsLocal)
	opsRemote := buildReplaceOps(diffsRemote)

	baseRunes := []rune(encoded[0])
	mergedRunes, conflicted := mergeReplaceOps(baseRunes, opsLocal, opsRemote, strategy)
	return decodeRuneLines(mergedRunes, lineArray), conflicted
}

// replaceOp describes one edit against the base line sequence: the
// half-open rune range [baseStart, baseEnd) it replaces, and the
// replacement text (itself a string of line-runes from linesToRunes).
type replaceOp struct {
	baseStart, baseEnd int
	text               string
}

func buildReplaceOps(diffs []diffmatchpatch.Diff) []replaceOp {
	var ops []replaceOp
	basePos := 0
	var cur *replaceOp
	flush := func() {
		if cur != nil {
			ops = append(ops, *cur)
			cur = nil
		}
	}
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			basePos += n
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &replaceOp{baseStart: basePos, baseEnd: basePos}
			}
			basePos += n
			cur.baseEnd = basePos
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &replaceOp{baseStart: basePos, baseEnd: basePos}
			}
			cur.text += d.Text
		}
	}
	flush()
	return ops
}

// mergeReplaceOps walks opsLocal and opsRemote, both expressed against
// baseRunes, in lockstep, emitting unchanged base content between
// operations and resolving any region both sides touch.
func mergeReplaceOps(baseRunes []rune, opsLocal, opsRemote []replaceOp, strategy ConflictResolutionStrategy) ([]rune, bool) {
	var out []rune
	conflicted := false
	pos, i, j := 0, 0, 0
	baseLen := len(baseRunes)

	for pos < baseLen || i < len(opsLocal) || j < len(opsRemote) {
		nextLocal := baseLen
		if i < len(opsLocal) {
			nextLocal = opsLocal[i].baseStart
		}
		nextRemote := baseLen
		if j < len(opsRemote) {
			nextRemote = opsRemote[j].baseStart
		}
		nextEvent := min3(nextLocal, nextRemote, baseLen)

		if pos < nextEvent {
			out = append(out, baseRunes[pos:nextEvent]...)
			pos = nextEvent
			continue
		}

		localActive := i < len(opsLocal) && opsLocal[i].baseStart == pos
		remoteActive := j < len(opsRemote) && opsRemote[j].baseStart == pos

		switch {
		case localActive && remoteActive:
			lo, ro := opsLocal[i], opsRemote[j]
			end := maxInt(lo.baseEnd, ro.baseEnd)
			if lo.text == ro.text && lo.baseEnd == ro.baseEnd {
				out = append(out, []rune(lo.text)...)
			} else {
				conflicted = true
				switch strategy {
				case StrategyOurs, StrategyOursDiff:
					out = append(out, []rune(lo.text)...)
				default: // StrategyTheirs
					out = append(out, []rune(ro.text)...)
				}
			}
			pos = end
			i++
			j++
			for i < len(opsLocal) && opsLocal[i].baseStart < pos {
				i++
			}
			for j < len(opsRemote) && opsRemote[j].baseStart < pos {
				j++
			}
		case localActive:
			out = append(out, []rune(opsLocal[i].text)...)
			pos = opsLocal[i].baseEnd
			i++
		case remoteActive:
			out = append(out, []rune(opsRemote[j].text)...)
			pos = opsRemote[j].baseEnd
			j++
		default:
			// Neither op actually starts at pos (can happen at EOF with
			// dangling zero-width insert ops); advance past to avoid
			// looping forever.
			if i < len(opsLocal) {
				i++
			}
			if j < len(opsRemote) {
				j++
			}
		}
	}
	return out, conflicted
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// linesToRunes tokenizes each of texts into lines (keeping line
// terminators so reconstruction is exact) and assigns each distinct line
// a private-use rune, shared across all of texts, so the returned
// encoded strings can be diffed against each other the way
// diffmatchpatch.DiffLinesToChars does for two texts.
func linesToRunes(texts ...string) (encoded []string, lineArray []string) {
	lineToRune := make(map[string]rune)
	next := rune(0xE000) // start of the Unicode Private Use Area
	encoded = make([]string, len(texts))
	for ti, text := range texts {
		var b strings.Builder
		for _, line := range splitLinesKeepEnds(text) {
			r, ok := lineToRune[line]
			if !ok {
				lineArray = append(lineArray, line)
				r = next
				lineToRune[line] = r
				next++
			}
			b.WriteRune(r)
		}
		encoded[ti] = b.String()
	}
	return encoded, lineArray
}

// splitLinesKeepEnds splits text into lines, each retaining its trailing
// "\n" (the final line keeps none if text doesn't end in one), so that
// decodeRuneLines can reconstruct the exact original bytes.
func splitLinesKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func decodeRuneLines(runes []rune, lineArray []string) string {
	var b strings.Builder
	for _, r := range runes {
		idx := int(r - 0xE000)
		if idx >= 0 && idx < len(lineArray) {
			b.WriteString(lineArray[idx])
		}
	}
	return b.String()
}
