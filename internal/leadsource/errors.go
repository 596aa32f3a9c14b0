package leadsource

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrDataSourceTimeout is wrapped by a DataSourceError when the fetch
// budget runs out.
var ErrDataSourceTimeout = eris.New("leadsource: fetch timed out")

// DataSourceError reports a failed fetch together with how far it got.
type DataSourceError struct {
	Pages   int
	Rows    int
	Timeout bool
	Err     error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("leadsource: fetch failed after %d pages (%d rows): %v", e.Pages, e.Rows, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var dse *DataSourceError
	if errors.As(err, &dse) && dse.Timeout {
		return true
	}
	return errors.Is(err, ErrDataSourceTimeout)
}

// AsDataSourceError extracts the DataSourceError from err's chain.
func AsDataSourceError(err error) (*DataSourceError, bool) {
	var dse *DataSourceError
	ok := errors.As(err, &dse)
	return dse, ok
}
