package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"swipeshop/internal/generation"
)

type generateRequest struct {
	ImageURL    string `json:"image_url"`
	ProductName string `json:"product_name"`
	Style       string `json:"style"`
	Count       int    `json:"count"`
}

// Generate is the stateless deck route: one product image in, a batch of
// background variants with copy out. A multipart file is uploaded first.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if isMultipart(r) {
		files, err := a.readFiles(r, "file")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		slot, err := a.Uploads.Upload(r.Context(), files[0].Filename, files[0].ContentType, files[0].Data)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		req.ImageURL = slot.PublicURL
		req.ProductName = r.FormValue("product_name")
		req.Style = r.FormValue("style")
		req.Count, _ = strconv.Atoi(r.FormValue("count"))
	} else if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}

	vr := generation.VariantRequest{
		ImageRef:    req.ImageURL,
		ProductName: req.ProductName,
		Count:       req.Count,
		RequestID:   meta(r).RequestID,
	}
	if id := strings.TrimSpace(req.Style); id != "" {
		style, err := a.Catalog.Style(id)
		if err != nil {
			a.error(w, http.StatusBadRequest, "invalid_input", "unknown style")
			return
		}
		vr.StylePrompt = style.Prompt
	}
	res, err := a.Variants.Variants(r.Context(), vr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}
