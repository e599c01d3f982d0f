package releaser

import (
	"os"

	"github.com/rs/zerolog/log"
)

// FatalHandler shuts the release runner down after an unrecoverable error
type FatalHandler interface {
	HandleFatal(error, string)
}

type fatalHandlerImpl struct {
}

// NewFatalHandler returns a new FatalHandler
func NewFatalHandler() FatalHandler {
	return &fatalHandlerImpl{}
}

func (fh *fatalHandlerImpl) HandleFatal(err error, message string) {
	log.Fatal().Err(err).Msg(message)
	os.Exit(1)
}
