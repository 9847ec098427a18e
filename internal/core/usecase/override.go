package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
)

// OverrideUseCase lets the user name the type of a document the classifier
// could not recognise. The manual type is final.
type OverrideUseCase struct {
	store   ports.SessionStore
	ledger  ports.DocumentLedger
	journal Journal
}

func NewOverrideUseCase(store ports.SessionStore, ledger ports.DocumentLedger, journal Journal) *OverrideUseCase {
	return &OverrideUseCase{
		store:   store,
		ledger:  ledger,
		journal: journal.normalize(),
	}
}

func (uc *OverrideUseCase) OverrideType(ctx context.Context, sessionID, documentID, label string) (*domain.Document, error) {
	doc, err := uc.store.Document(ctx, sessionID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.CanOverride() {
		return nil, domain.WrapError(domain.ErrOverrideNotAllowed, "override type",
			fmt.Errorf("document %s is %s (%s)", doc.ID, doc.Type, doc.TypeSource))
	}

	docType := domain.ParseDocumentType(label)
	if docType.IsReserved() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "override type",
			fmt.Errorf("label %q cannot be assigned manually", label))
	}

	if err := uc.ledger.SaveTypeOverride(ctx, doc.ID, docType); err != nil {
		return nil, fmt.Errorf("save type override: %w", err)
	}

	previous := doc.Type
	doc, err = uc.store.SetManualType(ctx, sessionID, documentID, docType)
	if err != nil {
		return nil, err
	}

	uc.journal.UserActions.Info("type_overridden",
		"session_id", sessionID,
		"document_id", doc.ID,
		"filename", doc.Filename,
		"from", previous,
		"to", docType,
	)
	return doc, nil
}
