package dataset

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/prefpack/prefpack/pkg/models"
)

// MapFunc adapts one raw dataset row into the pair format.
type MapFunc func(Row) (models.PairExample, error)

// mapFns is the explicit adapter registry, built once at startup. Adapters
// are looked up by name from config; there is no dynamic resolution.
var mapFns = map[string]MapFunc{
	"intel_orca":       intelOrcaMapFn,
	"ultrafeedback":    ultrafeedbackMapFn,
	"orpo_dpo_mix_40k": orpoDPOMixMapFn,
}

// LookupMapFn resolves a registered adapter by name.
func LookupMapFn(name string) (MapFunc, error) {
	fn, ok := mapFns[name]
	if !ok {
		return nil, fmt.Errorf("unknown map_fn %q (registered: %v)", name, MapFnNames())
	}
	return fn, nil
}

// MapFnNames returns the registered adapter names in sorted order.
func MapFnNames() []string {
	names := make([]string, 0, len(mapFns))
	for name := range mapFns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func rowString(row Row, key string) (string, error) {
	v, ok := row[key]
	if !ok {
		return "", fmt.Errorf("row is missing required key %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("key %q must be a string (got %T)", key, v)
	}
	return s, nil
}

func rowMessages(row Row, key string) ([]models.Message, error) {
	v, ok := row[key]
	if !ok {
		return nil, fmt.Errorf("row is missing required key %q", key)
	}
	// Round-trip through JSON: the row was decoded into generic maps.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("key %q is not re-encodable: %w", key, err)
	}
	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("key %q must be a message list: %w", key, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("key %q must not be empty", key)
	}
	return msgs, nil
}

// intelOrcaMapFn adapts Intel Orca style rows (system/question plus plain
// chosen/rejected strings).
func intelOrcaMapFn(row Row) (models.PairExample, error) {
	system, err := rowString(row, "system")
	if err != nil {
		return models.PairExample{}, err
	}
	question, err := rowString(row, "question")
	if err != nil {
		return models.PairExample{}, err
	}
	chosen, err := rowString(row, "chosen")
	if err != nil {
		return models.PairExample{}, err
	}
	rejected, err := rowString(row, "rejected")
	if err != nil {
		return models.PairExample{}, err
	}

	return models.PairExample{
		Prompt: []models.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: question},
		},
		Chosen:   []models.Message{{Role: "assistant", Content: chosen}},
		Rejected: []models.Message{{Role: "assistant", Content: rejected}},
	}, nil
}

// ultrafeedbackMapFn adapts UltraFeedback style rows. Optional
// prompt_role/answer_role keys override the default user/assistant tags.
func ultrafeedbackMapFn(row Row) (models.PairExample, error) {
	instruction, err := rowString(row, "instruction")
	if err != nil {
		return models.PairExample{}, err
	}
	chosen, err := rowString(row, "chosen")
	if err != nil {
		return models.PairExample{}, err
	}
	rejected, err := rowString(row, "rejected")
	if err != nil {
		return models.PairExample{}, err
	}

	promptRole := "user"
	if v, ok := row["prompt_role"].(string); ok && v != "" {
		promptRole = v
	}
	answerRole := "assistant"
	if v, ok := row["answer_role"].(string); ok && v != "" {
		answerRole = v
	}

	return models.PairExample{
		Prompt:   []models.Message{{Role: promptRole, Content: instruction}},
		Chosen:   []models.Message{{Role: answerRole, Content: chosen}},
		Rejected: []models.Message{{Role: answerRole, Content: rejected}},
	}, nil
}

// orpoDPOMixMapFn adapts orpo-dpo-mix-40k style rows where chosen and
// rejected are full transcripts sharing all turns but the last.
func orpoDPOMixMapFn(row Row) (models.PairExample, error) {
	chosen, err := rowMessages(row, "chosen")
	if err != nil {
		return models.PairExample{}, err
	}
	rejected, err := rowMessages(row, "rejected")
	if err != nil {
		return models.PairExample{}, err
	}
	if len(chosen) != len(rejected) {
		return models.PairExample{}, fmt.Errorf(
			"chosen and rejected transcripts must have equal length (got %d and %d)",
			len(chosen), len(rejected))
	}
	if len(chosen) < 2 {
		return models.PairExample{}, fmt.Errorf("transcripts must contain a prompt turn and a continuation")
	}

	return models.PairExample{
		Prompt:   chosen[:len(chosen)-1],
		Chosen:   chosen[len(chosen)-1:],
		Rejected: rejected[len(rejected)-1:],
	}, nil
}
