package relevance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ArxivDigest/internal/domain"
)

// scoreMarker identifies the lines of a reply that carry a score object.
const scoreMarker = "relevancy score"

var enumerator = regexp.MustCompile(`^\s*\d+\.\s*`)

// Response is the decoded reply for one batch. Items[i] belongs to the i-th
// paper of the batch; the parser only ever trims items from the end, so a
// model that drops a line in the middle shifts every later score onto the
// wrong paper. That case cannot be detected from the reply alone.
type Response struct {
	Items []domain.ScoredPaper
	// Hallucinated is set when the reply held a different number of score
	// lines than the batch had papers.
	Hallucinated bool
	// UnknownFields lists keys the model returned outside the score schema.
	UnknownFields []string
}

// AboveThreshold returns the items scoring at least threshold, in batch order.
func (r Response) AboveThreshold(threshold int) []domain.ScoredPaper {
	var out []domain.ScoredPaper
	for _, item := range r.Items {
		if item.Score.RelevancyScore >= threshold {
			out = append(out, item)
		}
	}
	return out
}

// ParseResponse decodes a model reply for the given batch. Each line containing
// "relevancy score" must be a JSON object, optionally prefixed by "<n>. ";
// any undecodable line fails the whole batch with a *domain.ResponseDecodeError.
func ParseResponse(papers []domain.Paper, raw string) (Response, error) {
	if strings.TrimSpace(raw) == "" {
		return Response{}, nil
	}

	unknown := map[string]struct{}{}
	var items []domain.ScoreItem
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), scoreMarker) {
			continue
		}
		item, extra, err := decodeScoreLine(line)
		if err != nil {
			return Response{}, &domain.ResponseDecodeError{Line: line, Err: err}
		}
		for _, key := range extra {
			unknown[key] = struct{}{}
		}
		items = append(items, item)
	}

	resp := Response{}
	if len(items) != len(papers) {
		resp.Hallucinated = true
		if len(items) > len(papers) {
			items = items[:len(papers)]
		}
	}

	resp.Items = make([]domain.ScoredPaper, len(items))
	for i, item := range items {
		resp.Items[i] = domain.ScoredPaper{Paper: papers[i], Score: item}
	}

	for key := range unknown {
		resp.UnknownFields = append(resp.UnknownFields, key)
	}
	sort.Strings(resp.UnknownFields)

	return resp, nil
}

// CheckReply reports whether every score line of raw decodes, without
// aligning it to papers. An empty reply or one without score lines is rejected.
func CheckReply(raw string) error {
	found := false
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), scoreMarker) {
			continue
		}
		if _, _, err := decodeScoreLine(line); err != nil {
			return &domain.ResponseDecodeError{Line: line, Err: err}
		}
		found = true
	}
	if !found {
		return errors.New("reply has no score lines")
	}
	return nil
}

func decodeScoreLine(line string) (domain.ScoreItem, []string, error) {
	text := strings.TrimSpace(enumerator.ReplaceAllString(line, ""))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		// Replies sometimes carry stray escapes around the quotes.
		stripped := strings.ReplaceAll(text, `\`, "")
		if err2 := json.Unmarshal([]byte(stripped), &fields); err2 != nil {
			return domain.ScoreItem{}, nil, err
		}
	}

	var (
		item     domain.ScoreItem
		hasScore bool
		extra    []string
	)
	for key, value := range fields {
		switch normalizeKey(key) {
		case "relevancy score":
			score, err := normalizeScore(value)
			if err != nil {
				return domain.ScoreItem{}, nil, err
			}
			item.RelevancyScore = score
			hasScore = true
		case "reasons for match", "reason", "reasons":
			if err := json.Unmarshal(value, &item.Reason); err != nil {
				item.Reason = strings.TrimSpace(string(value))
			}
		default:
			extra = append(extra, key)
		}
	}

	if !hasScore {
		return domain.ScoreItem{}, nil, errors.New("missing relevancy score")
	}
	return item, extra, nil
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.ReplaceAll(key, "_", " ")
}

// normalizeScore accepts 8, 8.0, "8" and "8/10".
func normalizeScore(value json.RawMessage) (int, error) {
	var number float64
	if err := json.Unmarshal(value, &number); err == nil {
		return int(math.Trunc(number)), nil
	}

	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return 0, fmt.Errorf("relevancy score %s is neither number nor string", string(value))
	}

	text = strings.TrimSpace(text)
	if numerator, _, ok := strings.Cut(text, "/"); ok {
		text = strings.TrimSpace(numerator)
	}

	score, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("relevancy score %q: %w", text, err)
	}
	return score, nil
}
