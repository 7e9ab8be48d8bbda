package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"gestion-immeubles/httpx"
	"gestion-immeubles/internal/policy"
)

var proprietaireExportHeader = []string{
	"Étage",
	"Appartement",
	"Nom",
	"Email",
	"Téléphone",
}

// Export streams the owners of the caller's building as an xlsx attachment.
func (h *ProprietaireHandler) Export(w http.ResponseWriter, r *http.Request) {
	user, _ := policy.PrincipalFromContext(r.Context())
	immeuble, err := policy.ImmeubleOf(h.DB, user.Syndic.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "Immeuble non trouvé", nil)
			return
		}
		h.serverError(w, "resolve immeuble", err)
		return
	}
	rows, err := h.rows(immeuble.ID)
	if err != nil {
		h.serverError(w, "list proprietaires", err)
		return
	}

	data, err := buildProprietaireSheet(rows)
	if err != nil {
		h.serverError(w, "build export", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="proprietaires.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func buildProprietaireSheet(rows []ProprietaireRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Propriétaires"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for col, header := range proprietaireExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}
	for i, row := range rows {
		values := []any{row.Etage, row.NumeroAppartement, row.Name, row.Email, row.Phone}
		for col, val := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
