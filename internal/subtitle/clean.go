package subtitle

import (
	"regexp"
	"strconv"
	"strings"
)

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)napiprojekt`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? and corrected`),
	regexp.MustCompile(`(?i)advertise (your|yours?) product`),
	regexp.MustCompile(`(?i)http(s)?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`(?i)\bsubscene\b`),
	regexp.MustCompile(`(?i)\byts\b`),
	regexp.MustCompile(`(?i)\byify\b`),
}

// CleanStats reports what CleanSRT removed.
type CleanStats struct {
	RemovedCues int
}

// CleanSRT drops advertisement cues, trims trailing whitespace and
// renumbers the remaining cues.
func CleanSRT(text string) (string, CleanStats) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	blocks := splitBlocks(normalized)
	cleaned := make([]string, 0, len(blocks))
	var stats CleanStats
	for _, block := range blocks {
		if blockIsAdvertisement(block) {
			stats.RemovedCues++
			continue
		}
		cleaned = append(cleaned, renumber(normalizeBlock(block), len(cleaned)+1))
	}
	output := strings.Join(cleaned, "\n\n")
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	return output, stats
}

func splitBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	var blocks []string
	for _, block := range strings.Split(trimmed, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func blockIsAdvertisement(block string) bool {
	textLines := subtitleTextLines(strings.Split(block, "\n"))
	if len(textLines) == 0 {
		return false
	}
	payload := strings.TrimSpace(strings.ToLower(strings.Join(textLines, " ")))
	if payload == "" {
		return false
	}
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

func subtitleTextLines(lines []string) []string {
	start := 0
	if start < len(lines) && isNumeric(lines[start]) {
		start++
	}
	if start < len(lines) && strings.Contains(lines[start], "-->") {
		start++
	}
	if start >= len(lines) {
		return nil
	}
	text := make([]string, 0, len(lines)-start)
	for _, line := range lines[start:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			text = append(text, trimmed)
		}
	}
	return text
}

func normalizeBlock(block string) string {
	lines := strings.Split(block, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines, "\n")
}

func renumber(block string, index int) string {
	first, rest, found := strings.Cut(block, "\n")
	if !found || !isNumeric(first) {
		return block
	}
	return strconv.Itoa(index) + "\n" + rest
}

func isNumeric(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	_, err := strconv.Atoi(value)
	return err == nil
}
