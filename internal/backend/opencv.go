//go:build gocv

package backend

import (
	"github.com/jamesainslie/go-crater/internal/correlate"
	"github.com/jamesainslie/go-crater/internal/cvmatch"
)

func init() {
	register("opencv", func() correlate.Correlator { return cvmatch.New() })
}
