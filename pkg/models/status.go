package models

// PageStatus represents the state of a scheduled URL in the visited store
type PageStatus string

const (
	PageStatusUnset         PageStatus = ""               // Zero value = unset/unknown
	PageStatusPending       PageStatus = "pending"        // Scheduled, download not finished
	PageStatusDownloaded    PageStatus = "downloaded"     // Download succeeded
	PageStatusFetchFailed   PageStatus = "fetch_failed"   // Download failed
	PageStatusExtractFailed PageStatus = "extract_failed" // Downloaded, but link extraction failed
	PageStatusNotFound      PageStatus = "not_found"      // URL not in store
	PageStatusDBError       PageStatus = "db_error"       // Store lookup failed
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status can be written to the store
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusPending, PageStatusDownloaded, PageStatusFetchFailed, PageStatusExtractFailed:
		return true
	}
	return false
}
