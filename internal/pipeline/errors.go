package pipeline

import (
	"errors"
	"fmt"

	"github.com/ppiankov/crisislog/internal/model"
)

// NewErrorRecord describes a failed document for the batch error list
func NewErrorRecord(url string, err error) model.ErrorRecord {
	var fe *FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case KindTimeout:
			return model.ErrorRecord{
				URL:         url,
				Error:       "Request timed out",
				Description: fmt.Sprintf("The request to %s took too long to complete", url),
			}
		case KindHTTP:
			return model.ErrorRecord{
				URL:         url,
				Error:       "HTTP Error: " + fe.Status,
				Description: "The server returned an error response: " + fe.Status,
			}
		case KindRobots:
			return model.ErrorRecord{
				URL:         url,
				Error:       "Disallowed by robots.txt",
				Description: fmt.Sprintf("The site's robots.txt does not allow fetching %s", url),
			}
		}
	}
	return model.ErrorRecord{
		URL:         url,
		Error:       err.Error(),
		Description: "Failed to process URL: " + url,
	}
}
