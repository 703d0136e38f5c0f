package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
)

type promptItem struct {
	ID          string `json:"id"`
	SKU         string `json:"sku,omitempty"`
	ItemNumber  string `json:"item_number,omitempty"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// BuildPrompt renders both item lists as JSON inside the instruction text.
func BuildPrompt(req matchingdomain.SupplementaryRequest) (string, error) {
	invoice := make([]promptItem, 0, len(req.InvoiceItems))
	for _, item := range req.InvoiceItems {
		invoice = append(invoice, promptItem{
			ID:          item.ID.String(),
			SKU:         strings.TrimSpace(item.SKU),
			ItemNumber:  strings.TrimSpace(item.ItemNumber),
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.String(),
		})
	}
	declaration := make([]promptItem, 0, len(req.DeclarationItems))
	for _, item := range req.DeclarationItems {
		declaration = append(declaration, promptItem{
			ID:          item.ID.String(),
			SKU:         strings.TrimSpace(item.SKU),
			ItemNumber:  strings.TrimSpace(item.ItemNumber),
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.String(),
		})
	}

	invoiceJSON, err := json.MarshalIndent(invoice, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal invoice items: %w", err)
	}
	declarationJSON, err := json.MarshalIndent(declaration, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal declaration items: %w", err)
	}

	var b strings.Builder
	b.WriteString("Pair each invoice item with at most one declaration item describing the same goods.\n")
	b.WriteString("Each declaration item may be used at most once. Leave items unpaired when unsure.\n\n")
	b.WriteString("Invoice items:\n")
	b.Write(invoiceJSON)
	b.WriteString("\n\nDeclaration items:\n")
	b.Write(declarationJSON)
	b.WriteString("\n\nRespond with JSON only, in this format:\n")
	b.WriteString(`{"matches":[{"invoice_item_id":"<id>","declaration_item_id":"<id>","confidence":<0-100>,"reason":"<short reason>"}]}`)
	b.WriteString("\n")
	return b.String(), nil
}
