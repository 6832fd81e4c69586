package badgerdb

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v2"

	"github.com/celer-network/safe-storage-verifier/log"
)

// extendedLog routes badger's printf style logging into the db module logger.
type extendedLog struct {
	*log.Logger
}

var _ badger.Logger = (*extendedLog)(nil)

func trim(format string, v []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}

func (l *extendedLog) Errorf(format string, v ...interface{}) {
	l.Error().Msg(trim(format, v))
}

func (l *extendedLog) Warningf(format string, v ...interface{}) {
	l.Warn().Msg(trim(format, v))
}

func (l *extendedLog) Infof(format string, v ...interface{}) {
	l.Info().Msg(trim(format, v))
}

func (l *extendedLog) Debugf(format string, v ...interface{}) {
	if l.IsDebugEnabled() {
		l.Debug().Msg(trim(format, v))
	}
}
