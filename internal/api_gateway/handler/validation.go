package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators teaches gin's validator to compare decimal amounts
// and to check wallet enums. It is safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("unexpected validator engine")
			return
		}

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" {
				name = strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
			}
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})

		if registerErr = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return payment.Method(fl.Field().String()).Valid()
		}); registerErr != nil {
			return
		}
		registerErr = v.RegisterValidation("wallet_status", func(fl validator.FieldLevel) bool {
			return wallet.Status(fl.Field().String()).Valid()
		})
	})
	return registerErr
}

// decimalValue exposes amounts to numeric tags like gt=0. A null amount reads as absent.
func decimalValue(field reflect.Value) interface{} {
	switch v := field.Interface().(type) {
	case decimal.Decimal:
		f, _ := v.Float64()
		return f
	case decimal.NullDecimal:
		if !v.Valid {
			return nil
		}
		f, _ := v.Decimal.Float64()
		return f
	}
	return nil
}

// bindingMessage turns a bind failure into something a client can act on
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "gt", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", fe.Field(), comparison(fe.Tag()), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid id", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

func comparison(tag string) string {
	if tag == "gte" {
		return "at least"
	}
	return "greater than"
}
