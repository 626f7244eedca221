package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/pds"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/tokens"
)

const recipientsField = "recipients"

// DataService reads and writes connection documents in account PDSs.
// Every request is authorized against the permissions table first.
type DataService struct {
	permissions PermissionStore
	storage     StorageOpener
	issuer      *tokens.Issuer
	logger      *logrus.Logger
}

// NewDataService creates a new DataService
func NewDataService(permissions PermissionStore, storage StorageOpener, issuer *tokens.Issuer, logger *logrus.Logger) *DataService {
	return &DataService{
		permissions: permissions,
		storage:     storage,
		issuer:      issuer,
		logger:      logger,
	}
}

// ReadData handles DATA_READ_REQUEST and returns the signed response.
func (s *DataService) ReadData(ctx context.Context, msg *models.Message) (string, error) {
	var payload models.DataReadRequestPayload
	if err := decode(msg, &payload); err != nil {
		return "", err
	}

	results, err := s.read(ctx, payload.Sub, payload.Iss, payload.Paths)
	if err != nil {
		return "", err
	}

	token, err := s.issuer.DataReadResponse(payload.Iss, payload.Sub, results)
	if err != nil {
		return "", serviceerror.Internal("Could not create read response", err)
	}
	return token, nil
}

// ReadRecipients handles RECIPIENTS_READ_REQUEST. Entries carry the
// recipients field of each document instead of the document.
func (s *DataService) ReadRecipients(ctx context.Context, msg *models.Message) (string, error) {
	var payload models.DataReadRequestPayload
	if err := decode(msg, &payload); err != nil {
		return "", err
	}

	results, err := s.read(ctx, payload.Sub, payload.Iss, payload.Paths)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", serviceerror.NotFound("No data found")
	}

	for i := range results {
		results[i].Recipients = field(results[i].Data, recipientsField)
		results[i].Data = nil
	}

	token, err := s.issuer.RecipientsReadResponse(payload.Iss, payload.Sub, results)
	if err != nil {
		return "", serviceerror.Internal("Could not create recipients response", err)
	}
	return token, nil
}

// WriteData handles DATA_WRITE. Paths without a permission are skipped;
// when none has one nothing is written.
func (s *DataService) WriteData(ctx context.Context, msg *models.Message) error {
	var payload models.DataWritePayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	requested := make([]models.PathRequest, len(payload.Paths))
	documents := map[scopeKey]json.RawMessage{}
	for i, p := range payload.Paths {
		requested[i] = models.PathRequest{Domain: p.Domain, Area: p.Area}
		documents[scopeKey{p.Domain, p.Area}] = p.Data
	}

	rows, err := s.authorize(ctx, payload.Sub, payload.Iss, requested)
	if err != nil {
		return err
	}

	var writes []models.PermissionPDSData
	for _, row := range rows {
		if hasDocument(documents[scopeKey{row.Domain, row.Area}]) {
			writes = append(writes, row)
		}
	}

	errs := iter.Map(writes, func(row *models.PermissionPDSData) error {
		data := documents[scopeKey{row.Domain, row.Area}]
		return s.write(ctx, payload.Sub, row, false, func([]byte) ([]byte, error) { return data, nil })
	})
	return s.settle(errs, len(writes))
}

// WriteRecipients handles RECIPIENTS_WRITE. Each authorized document is
// read, its recipients replaced and written back.
func (s *DataService) WriteRecipients(ctx context.Context, msg *models.Message) error {
	var payload models.RecipientsWritePayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	requested := make([]models.PathRequest, len(payload.Paths))
	recipients := map[scopeKey]json.RawMessage{}
	for i, p := range payload.Paths {
		requested[i] = models.PathRequest{Domain: p.Domain, Area: p.Area}
		recipients[scopeKey{p.Domain, p.Area}] = p.Recipients
	}

	rows, err := s.authorize(ctx, payload.Sub, payload.Iss, requested)
	if err != nil {
		return err
	}

	errs := iter.Map(rows, func(row *models.PermissionPDSData) error {
		updated := recipients[scopeKey{row.Domain, row.Area}]
		return s.write(ctx, payload.Sub, row, true, func(existing []byte) ([]byte, error) {
			return replaceField(existing, recipientsField, updated)
		})
	})
	return s.settle(errs, len(rows))
}

type scopeKey struct {
	domain string
	area   string
}

// read looks up READ permissions for every path and reads each authorized
// document concurrently. Failures are reported per path.
func (s *DataService) read(ctx context.Context, connectionID, serviceID string, paths []models.PathRequest) ([]models.PathResult, error) {
	perPath, err := iter.MapErr(paths, func(p *models.PathRequest) ([]models.PermissionPDSData, error) {
		return s.permissions.Read(ctx, connectionID, serviceID, p.Domain, p.Area)
	})
	if err != nil {
		return nil, serviceerror.Internal("Could not look up permissions", err)
	}

	var rows []models.PermissionPDSData
	for _, r := range perPath {
		rows = append(rows, r...)
	}

	return iter.Map(rows, func(row *models.PermissionPDSData) models.PathResult {
		return s.readDocument(ctx, connectionID, row)
	}), nil
}

func (s *DataService) readDocument(ctx context.Context, connectionID string, row *models.PermissionPDSData) models.PathResult {
	result := models.PathResult{Domain: row.Domain, Area: row.Area}

	fs, err := s.storage.Get(ctx, row.PDSProvider, row.PDSCredentials)
	if err != nil {
		result.Error = pathError(err)
		return result
	}

	p := documentPath(connectionID, row)
	data, err := fs.ReadFile(ctx, p)
	switch {
	case pds.IsNotExist(err):
		return result
	case err != nil:
		s.logger.WithError(err).WithField("path", p).Warn("Failed to read document")
		result.Error = pathError(err)
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return result
	}
	if !json.Valid(data) {
		result.Error = &models.PathError{Message: "Stored document is not JSON", Status: http.StatusInternalServerError}
		return result
	}
	result.Data = data
	return result
}

// authorize looks up WRITE permissions for every path. With none found the
// request is refused before any storage is touched.
func (s *DataService) authorize(ctx context.Context, connectionID, serviceID string, paths []models.PathRequest) ([]models.PermissionPDSData, error) {
	perPath, err := iter.MapErr(paths, func(p *models.PathRequest) ([]models.PermissionPDSData, error) {
		return s.permissions.Write(ctx, connectionID, serviceID, p.Domain, p.Area)
	})
	if err != nil {
		return nil, serviceerror.Internal("Could not look up permissions", err)
	}

	var rows []models.PermissionPDSData
	for _, r := range perPath {
		rows = append(rows, r...)
	}
	if len(rows) == 0 {
		return nil, serviceerror.Forbidden("No valid permission")
	}
	return rows, nil
}

// write stores the output of update. With readExisting update receives the
// current document, or nil when there is none.
func (s *DataService) write(ctx context.Context, connectionID string, row *models.PermissionPDSData, readExisting bool, update func([]byte) ([]byte, error)) error {
	fs, err := s.storage.Get(ctx, row.PDSProvider, row.PDSCredentials)
	if err != nil {
		return err
	}

	p := documentPath(connectionID, row)

	var existing []byte
	if readExisting {
		existing, err = fs.ReadFile(ctx, p)
		if err != nil && !pds.IsNotExist(err) {
			return err
		}
	}

	data, err := update(existing)
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	if err := fs.OutputFile(ctx, p, data); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"connectionId": connectionID,
		"domain":       row.Domain,
		"area":         row.Area,
	}).Debug("Document written")
	return nil
}

// settle joins the failures of a completed fan-out into one storage error.
func (s *DataService) settle(errs []error, total int) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	joined := errors.Join(failed...)
	s.logger.WithError(joined).Warnf("%d of %d writes failed", len(failed), total)
	return serviceerror.Storage(fmt.Sprintf("Could not write %d of %d paths", len(failed), total), joined)
}

func documentPath(connectionID string, row *models.PermissionPDSData) string {
	if row.DataPath.Valid && row.DataPath.String != "" {
		return row.DataPath.String
	}
	return pds.DataPath(connectionID, row.Domain, row.Area)
}

func pathError(err error) *models.PathError {
	pe := &models.PathError{Message: err.Error()}
	var pathErr *pds.PathError
	if errors.As(err, &pathErr) {
		pe.Code = pathErr.Code
		pe.Status = pathErr.Status
	}
	return pe
}

func hasDocument(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// field returns a top level field of a JSON object document, or nil.
func field(document json.RawMessage, name string) json.RawMessage {
	if len(document) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(document, &fields); err != nil {
		return nil
	}
	return fields[name]
}

// replaceField sets one top level field of a JSON object document, keeping
// the others. A missing document starts empty.
func replaceField(document []byte, name string, value json.RawMessage) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(document)) > 0 {
		if err := json.Unmarshal(document, &fields); err != nil {
			return nil, fmt.Errorf("document is not a JSON object: %w", err)
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	fields[name] = value
	return json.Marshal(fields)
}
