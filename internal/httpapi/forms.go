package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const formDateLayout = "2006-01-02"

var (
	validate    = newValidator()
	formDecoder = newFormDecoder()
)

// fieldMessage is a decode failure already worded for the user.
type fieldMessage string

func (m fieldMessage) Error() string { return string(m) }

func newFormDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		amount, err := decimal.NewFromString(vals[0])
		if err != nil {
			return nil, fieldMessage("must be a non-negative amount")
		}
		return amount, nil
	}, decimal.Decimal{})
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		day, err := time.Parse(formDateLayout, vals[0])
		if err != nil {
			return nil, fieldMessage("must be a date formatted as " + formDateLayout)
		}
		return day, nil
	}, time.Time{})
	return d
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"form", "json"} {
			tag := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
			if tag != "" && tag != "-" {
				return tag
			}
		}
		return f.Name
	})
	// Decimals validate as their string form.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if amount, ok := field.Interface().(decimal.Decimal); ok {
			return amount.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	_ = v.RegisterValidation("qty", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() > 0
	})
	return v
}

// validationError lists the failing fields with a readable message each.
type validationError struct {
	Fields map[string]string
}

func (e *validationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, strings.ReplaceAll(name, "_", " ")+" "+e.Fields[name])
	}
	return strings.Join(parts, "; ")
}

func validateStruct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = validationMessage(fe)
	}
	return &validationError{Fields: fields}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "money":
		return "must be a non-negative amount"
	case "qty":
		return "must be a positive whole number"
	case "number":
		return "must be a whole number"
	case "datetime":
		return fmt.Sprintf("must be a date formatted as %s", fe.Param())
	}
	return "is invalid"
}

// decodeForm decodes the urlencoded body into dest and validates it. Blank
// fields are dropped first so optional values stay nil.
func decodeForm(r *http.Request, dest any) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}

	values := make(url.Values, len(r.PostForm))
	for key, vals := range r.PostForm {
		for _, val := range vals {
			if val = strings.TrimSpace(val); val != "" {
				values.Add(key, val)
			}
		}
	}

	if err := formDecoder.Decode(dest, values); err != nil {
		var decodeErrs form.DecodeErrors
		if !errors.As(err, &decodeErrs) {
			return fmt.Errorf("invalid form: %w", err)
		}
		fields := make(map[string]string, len(decodeErrs))
		for name, fieldErr := range decodeErrs {
			var msg fieldMessage
			if errors.As(fieldErr, &msg) {
				fields[name] = string(msg)
				continue
			}
			fields[name] = "is invalid"
		}
		return &validationError{Fields: fields}
	}
	return validateStruct(dest)
}

type loginForm struct {
	Username string `form:"username" validate:"required,max=64"`
	Password string `form:"password" validate:"required,max=128"`
}

type clockInForm struct {
	OpeningBalance *decimal.Decimal `form:"opening_balance" validate:"required,money"`
}

type clockOutForm struct {
	ClosingBalance *decimal.Decimal `form:"closing_balance" validate:"omitempty,money"`
	Remark         string `form:"remark" validate:"max=500"`
	RedirectTo     string `form:"redirect-to" validate:"max=2048"`
}

type addInventoryForm struct {
	BranchID  string     `form:"branch_id" validate:"required,max=64"`
	Quantity  int        `form:"quantity" validate:"qty"`
	ExpiredAt *time.Time `form:"expired_at"`
	Priority  int        `form:"priority" validate:"min=0"`
	Remark    string     `form:"remark" validate:"max=500"`
}

type moveInventoryForm struct {
	InventoryID string `form:"inventory_id" validate:"required,max=64"`
	ToBranchID  string `form:"to_branch_id" validate:"required,max=64"`
	Quantity    int    `form:"quantity" validate:"qty"`
	Remark      string `form:"remark" validate:"max=500"`
}

type removeInventoryForm struct {
	BranchID    string `form:"branch_id" validate:"max=64"`
	InventoryID string `form:"inventory_id" validate:"required,max=64"`
	Quantity    int    `form:"quantity" validate:"qty"`
	Remark      string `form:"remark" validate:"max=500"`
}

type clearSuspensionForm struct {
	ManagerPIN string `form:"manager_pin" validate:"required,max=32"`
}

// amountOrZero dereferences an optional amount; blank means zero.
func amountOrZero(amount *decimal.Decimal) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return *amount
}
