// Package viacep looks up Brazilian addresses by postal code through the
// public ViaCEP API. Lookup is enrichment only: any failure degrades to "user
// fills the address manually" and must never fail a registration step.
package viacep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"prato/internal/registration/models"
	"prato/pkg/brdoc"
)

// ErrNotFound is returned when the CEP does not resolve to an address.
var ErrNotFound = fmt.Errorf("cep not found")

// Client queries ViaCEP. Concurrent lookups for the same CEP are collapsed
// into a single upstream request; bursts happen when a form page hydrates
// several fields at once.
type Client struct {
	baseURL string
	http    *http.Client
	group   singleflight.Group
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup resolves a CEP into address fields. Estado comes back as the UF
// code, matching what step-2 validation expects.
func (c *Client) Lookup(ctx context.Context, cep string) (*models.Address, error) {
	clean := brdoc.NormalizeDigits(cep)
	if len(clean) != 8 {
		return nil, ErrNotFound
	}

	v, err, _ := c.group.Do(clean, func() (any, error) {
		return c.fetch(ctx, clean)
	})
	if err != nil {
		return nil, err
	}
	addr := v.(models.Address)
	return &addr, nil
}

func (c *Client) fetch(ctx context.Context, cep string) (models.Address, error) {
	url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Address{}, fmt.Errorf("build viacep request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Address{}, fmt.Errorf("viacep request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Address{}, fmt.Errorf("viacep status %d", resp.StatusCode)
	}

	var body struct {
		Erro       bool   `json:"erro"`
		Logradouro string `json:"logradouro"`
		Bairro     string `json:"bairro"`
		Localidade string `json:"localidade"`
		UF         string `json:"uf"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Address{}, fmt.Errorf("decode viacep response: %w", err)
	}
	if body.Erro {
		return models.Address{}, ErrNotFound
	}

	return models.Address{
		CEP:      brdoc.FormatCEP(cep),
		Endereco: body.Logradouro,
		Bairro:   body.Bairro,
		Cidade:   body.Localidade,
		Estado:   body.UF,
	}, nil
}
