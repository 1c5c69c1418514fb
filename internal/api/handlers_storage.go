package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stocktrack/pkg/stocktrack"
)

type storageInfoResponse struct {
	DBPath             string                    `json:"db_path"`
	DataDir            string                    `json:"data_dir"`
	DBFiles            []string                  `json:"db_files"`
	CostBasisOrder     stocktrack.CostBasisOrder `json:"cost_basis_order"`
	TradingDaysPerYear int                       `json:"trading_days_per_year"`
}

func (h *handler) getStorageInfo(w http.ResponseWriter, r *http.Request) {
	dbPath := h.core.DBPath()
	dataDir := filepath.Dir(dbPath)
	files, err := listDBFiles(dataDir)
	if err != nil {
		h.logger.Warn("list storage files failed", "dir", dataDir, "err", err)
		files = []string{filepath.Base(dbPath)}
	}
	writeJSON(w, http.StatusOK, storageInfoResponse{
		DBPath:             dbPath,
		DataDir:            dataDir,
		DBFiles:            files,
		CostBasisOrder:     h.core.CostBasisOrder(),
		TradingDaysPerYear: h.core.TradingDaysPerYear(),
	})
}

func listDBFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".db") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
