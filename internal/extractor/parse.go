package extractor

import (
	"strings"

	"sjsage522/dealscout/helpers"
	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/pkg/errors"
)

// ParseRecord turns an LLM reply into a raw record. A nil record with a
// nil error is the "no product" outcome. Unparseable replies come back as a
// malformed error and are treated the same way by callers.
func ParseRecord(reply string) (product.RawRecord, error) {
	s := helpers.StripFences(reply)
	if s == "" || strings.EqualFold(s, NullSentinel) {
		return nil, nil
	}

	var rec product.RawRecord
	if err := helpers.DecodeJSONObject(s, &rec); err != nil {
		return nil, errors.NewMalformed(errors.StageExtract, "reply is not a JSON object", err)
	}
	if len(rec) == 0 {
		return nil, nil
	}
	return rec, nil
}
