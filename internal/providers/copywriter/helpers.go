package copywriter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"swipeshop/internal/domain"
)

func buildCopyPrompt(req CopyRequest) string {
	n := req.count()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "You are a senior e-commerce copywriter. Write %d catchy, short marketing lines (max 40 characters each). ", n)
	sb.WriteString("Respond strictly with a JSON array of strings and nothing else. ")
	if name := strings.TrimSpace(req.ProductName); name != "" {
		fmt.Fprintf(sb, "Product: %q. ", name)
	}
	if p := strings.TrimSpace(req.Purpose); p != "" {
		fmt.Fprintf(sb, "Page purpose: %q. ", p)
	}
	if s := strings.TrimSpace(req.Style); s != "" {
		fmt.Fprintf(sb, "Tone and style: %q. ", s)
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		fmt.Fprintf(sb, "Details from the seller: %q. ", d)
	}
	if len(req.Sections) > 0 {
		sb.WriteString("One line per slot, in order: ")
		for i, section := range req.Sections {
			if i > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(sb, "%d=%s", i+1, section)
			if i < len(req.Defaults) && req.Defaults[i] != "" {
				fmt.Fprintf(sb, " (draft: %q)", req.Defaults[i])
			}
		}
		sb.WriteString(". ")
	}
	if l := strings.TrimSpace(req.Locale); l != "" {
		fmt.Fprintf(sb, "Write in locale %q.", l)
	}
	return strings.TrimSpace(sb.String())
}

func buildRefinePrompt(req RefineRequest) string {
	sb := &strings.Builder{}
	sb.WriteString("Rewrite this marketing line so it is punchier and more persuasive while keeping its meaning and language. ")
	sb.WriteString("Answer with the new line only, no quotes. ")
	if s := strings.TrimSpace(req.Section); s != "" {
		fmt.Fprintf(sb, "Section: %s. ", s)
	}
	if s := strings.TrimSpace(req.Style); s != "" {
		fmt.Fprintf(sb, "Style: %s. ", s)
	}
	fmt.Fprintf(sb, "Line: %q", strings.TrimSpace(req.Copy))
	return sb.String()
}

// parseCopyList decodes a model's JSON array answer. Blank entries are kept
// so slot positions survive; an answer with no usable line is an error.
func parseCopyList(raw string, limit int) ([]string, error) {
	lines, err := parseModelPayload[[]string](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed copy payload: %v", domain.ErrGenerationFailed, err)
	}
	usable := 0
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
		if lines[i] != "" {
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("%w: model returned no copy", domain.ErrGenerationFailed)
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	return lines, nil
}

func parseRefined(raw string) (string, error) {
	text := trimCodeFence(raw)
	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"“”'`))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	if text == "" {
		return "", fmt.Errorf("%w: model returned an empty line", domain.ErrGenerationFailed)
	}
	return text, nil
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
