package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
)

var validate = validator.New()

// Options параметры запуска ремонта и посева
type Options struct {
	// RequiredDistrictCount целевое число округов; 0 отключает посев
	RequiredDistrictCount int `json:"required_district_count" validate:"gte=0"`
	// MaxRepairSweeps предел числа проходов ремонта
	MaxRepairSweeps int `json:"max_repair_sweeps" validate:"gte=1"`
	// SeedCandidateMultiplier множитель окна кандидатов для посева
	SeedCandidateMultiplier int `json:"seed_candidate_multiplier" validate:"gte=1"`
	// RandomSeed зерно генератора выбора соседа
	RandomSeed int64 `json:"random_seed"`
	// Workers число горутин для поиска компонент внутри прохода
	Workers int `json:"workers" validate:"gte=1,lte=256"`
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		MaxRepairSweeps:         domain.DefaultMaxRepairSweeps,
		SeedCandidateMultiplier: domain.DefaultSeedCandidateMultiplier,
		Workers:                 domain.DefaultWorkers,
	}
}

// WithDefaults заполняет нулевые поля значениями по умолчанию
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.MaxRepairSweeps == 0 {
		o.MaxRepairSweeps = def.MaxRepairSweeps
	}
	if o.SeedCandidateMultiplier == 0 {
		o.SeedCandidateMultiplier = def.SeedCandidateMultiplier
	}
	if o.Workers == 0 {
		o.Workers = def.Workers
	}
	return o
}

// Validate проверяет параметры
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Wrap(err, apperror.CodeInvalidConfig, "invalid engine options")
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}

	return apperror.NewWithField(apperror.CodeInvalidConfig, strings.Join(msgs, "; "),
		toSnake(fieldErrs[0].Field())).
		WithDetails("violations", msgs)
}

func formatFieldError(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// toSnake переводит имя поля Go в snake_case, как в конфигурации
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
