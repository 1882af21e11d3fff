package sqlite

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// fieldSentinels maps struct fields to the sentinel reported when their
// validation tag fails.
var fieldSentinels = map[string]error{
	"Weight":     types.ErrInvalidWeight,
	"Confidence": types.ErrInvalidWeight,
	"RiskScore":  types.ErrInvalidRiskScore,
	"EventType":  types.ErrInvalidEventType,
}

// checkStruct runs the struct tags on v and converts the first failure into
// a types sentinel error.
func (b *Backend) checkStruct(v any) error {
	err := b.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", types.ErrInvalidRequest, err)
	}
	fe := verrs[0]
	sentinel, ok := fieldSentinels[fe.StructField()]
	if !ok {
		sentinel = types.ErrInvalidRequest
	}
	if fe.Param() != "" {
		return fmt.Errorf("%w: field %s failed %s=%s", sentinel, fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%w: field %s failed %s", sentinel, fe.Field(), fe.Tag())
}
