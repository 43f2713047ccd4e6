package ocr

import (
	"strconv"
	"strings"
)

// parseTSV filters the engine's word-level TSV output by confidence and
// rebuilds the text. Columns: level page_num block_num par_num line_num
// word_num left top width height conf text. Word rows carry level 5; a
// confidence of -1 marks layout rows, which only contribute line breaks.
func parseTSV(out string, minConf float64) string {
	var lines []string
	var words []string
	lineKey := ""

	flush := func() {
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
			words = nil
		}
	}

	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		key := cols[2] + "/" + cols[3] + "/" + cols[4] // block/par/line
		if key != lineKey {
			flush()
			lineKey = key
		}

		word := strings.TrimSpace(cols[11])
		if word == "" || conf <= minConf {
			continue
		}
		words = append(words, word)
	}
	flush()

	return strings.Join(lines, "\n")
}
