package warranty

import (
	"fmt"

	"github.com/zombor/warrantysafe/internal/scanning"
)

// DefaultMaxUploadBytes is the 5 MB upload limit
const DefaultMaxUploadBytes = 5 << 20

// UploadPolicy is checked before a document reaches the engine
type UploadPolicy struct {
	MaxBytes int64
}

// DefaultUploadPolicy allows documents up to 5 MB
var DefaultUploadPolicy = UploadPolicy{MaxBytes: DefaultMaxUploadBytes}

// CheckUpload rejects oversize documents and types with no recovery route
func CheckUpload(doc scanning.Document, p UploadPolicy) error {
	size := doc.Size
	if int64(len(doc.Data)) > size {
		size = int64(len(doc.Data))
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, size, p.MaxBytes)
	}
	if scanning.KindOf(doc.MediaType, doc.Name) == scanning.KindUnsupported {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, doc.MediaType)
	}
	return nil
}
