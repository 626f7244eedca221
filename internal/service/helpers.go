package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/pkg/utils"
)

const uniqueViolation = "23505"

// decode unmarshals a verified message payload and validates it.
func decode(msg *models.Message, v interface{}) error {
	if err := msg.Decode(v); err != nil {
		return serviceerror.Validation("Invalid payload", err)
	}
	return validate(v)
}

func validate(v interface{}) error {
	if err := utils.ValidateStruct(v); err != nil {
		return serviceerror.Validation(utils.FormatValidationErrors(err), err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
