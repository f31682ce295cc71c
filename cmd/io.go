package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/ingest"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/signal"
	"github.com/sells-group/transition-cli/internal/store"
)

// writeDetections writes one JSON object per line.
func writeDetections(w io.Writer, detections []model.TransitionDetection) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range detections {
		if err := enc.Encode(&detections[i]); err != nil {
			return eris.Wrapf(err, "encode detection %s", detections[i].DetectionID)
		}
	}
	return eris.Wrap(bw.Flush(), "flush detections")
}

// writeDetectionsFile writes detections to path, or stdout for "-".
func writeDetectionsFile(path string, stdout io.Writer, detections []model.TransitionDetection) error {
	if path == "-" {
		return writeDetections(stdout, detections)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := writeDetections(f, detections); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

// readDetectionsFile reads a JSON-lines detection file.
func readDetectionsFile(path string) ([]model.TransitionDetection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var out []model.TransitionDetection
	dec := json.NewDecoder(f)
	for {
		var d model.TransitionDetection
		err := dec.Decode(&d)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "decode %s (record %d)", path, len(out)+1)
		}
		out = append(out, d)
	}
}

const detectionPageSize = 1000

// loadStoredDetections pages through every detection matching filter.
func loadStoredDetections(ctx context.Context, st store.Store, filter store.DetectionFilter) ([]model.TransitionDetection, error) {
	filter.Limit = detectionPageSize
	filter.Offset = 0

	var out []model.TransitionDetection
	for {
		page, err := st.ListDetections(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < detectionPageSize {
			return out, nil
		}
		filter.Offset += len(page)
	}
}

// detectionsFrom reads detections from a file when path is set, otherwise
// from the configured store filtered to algorithmVersion.
func detectionsFrom(ctx context.Context, path, algorithmVersion string) ([]model.TransitionDetection, error) {
	if path != "" {
		return readDetectionsFile(path)
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	defer st.Close() //nolint:errcheck
	return loadStoredDetections(ctx, st, store.DetectionFilter{AlgorithmVersion: algorithmVersion})
}

// localizeInputs rewrites each non-empty path to a local file, downloading
// URLs and unpacking zip archives into a temp dir. The returned cleanup
// removes the temp dir.
func localizeInputs(ctx context.Context, fc config.FetchConfig, paths ...*string) (func(), error) {
	workDir, err := os.MkdirTemp("", "transition-fetch-")
	if err != nil {
		return nil, eris.Wrap(err, "create fetch dir")
	}
	cleanup := func() { _ = os.RemoveAll(workDir) }

	f := ingest.NewFetcher(workDir, fc)
	for _, p := range paths {
		local, err := f.Localize(ctx, *p)
		if err != nil {
			cleanup()
			return nil, err
		}
		*p = local
	}
	return cleanup, nil
}

// buildClassifier loads the keyword classifier named by path, falling back
// to the configured keywords file. It returns nil when neither is set.
func buildClassifier(path string, tc config.TransitionConfig) (signal.Classifier, error) {
	if path == "" {
		path = tc.TechArea.KeywordsFile
	}
	if path == "" {
		return nil, nil
	}
	c, err := signal.LoadKeywordClassifier(path)
	if err != nil {
		return nil, err
	}
	return c, nil
}
