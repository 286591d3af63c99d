// Package crater turns predicted crater-ring probability masks into circles
// and scores them against ground-truth crater catalogs.
//
// # Quick Start
//
//	scorer, err := crater.NewScorer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := scorer.ScoreMask(mask, truth)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("matched %d of %d craters (%d detections)\n",
//	    result.NMatch, result.NCSV, result.NTempl)
//
// # Pipeline
//
// An Extractor binarizes the mask and cross-correlates it with ring templates
// over a list of radii; every correlation peak above the template threshold is
// a candidate circle. Match pairs candidates with ground-truth circles under
// radius-relative distance and radius tolerances, and an Accumulator reduces
// per-image results into recall, precision and F2 statistics.
//
// Images with fewer than three ground-truth craters, or with no matches at
// all, are counted but never averaged.
//
// # Model Inference
//
// Detector wraps a U-Net exported to ONNX and feeds its masks through the same
// pipeline. Detector is safe for concurrent use; it keeps a pool of ONNX
// sessions sized by WithPoolSize.
package crater
