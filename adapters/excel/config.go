package excel

// ReaderConfig holds configuration for matrix files
type ReaderConfig struct {
	Sheet     string `json:"sheet"`     // XLSX sheet; empty means the first sheet
	Delimiter rune   `json:"delimiter"` // CSV field separator
}

// DefaultReaderConfig returns sensible defaults for matrix files
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{Delimiter: ','}
}
