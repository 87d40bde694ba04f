package invoice

import (
	"time"

	"github.com/zombor/invoice-audit/internal/parse"
)

// Invoice is a processed invoice: the stored upload, the extracted candidate
// record, and bookkeeping. The verification report is stored alongside it,
// keyed by the same ID.
type Invoice struct {
	ID           string        `json:"id"`
	Filename     string        `json:"filename"`
	ContentType  string        `json:"content_type"`
	Record       *parse.Record `json:"record"`
	SealCropFile string        `json:"seal_crop_file,omitempty"` // stored crop of the detected seal, when found
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
