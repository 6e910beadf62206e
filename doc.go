// Package stagefetch fetches dataset archives and stages their records on
// local disk.
//
// A Fetcher tries a list of candidate sources in order, downloads the first
// archive that is available, unpacks it into one folder per split and
// returns lazily loaded views over the persisted records. Later runs find
// the committed manifests and return the views without any network access.
//
// # Quick Start
//
//	f, err := stagefetch.NewFetcher(stagefetch.Config[*record.Array, int]{
//		BaseDir:  "./data",
//		Splits:   []string{cifar.DefaultTrainSplit, cifar.DefaultTestSplit},
//		Sources:  []source.Source{source.NewHTTP("https://example.com/cifar-10-binary.tar.gz")},
//		Unpacker: cifar.New(),
//		Codec:    record.NewArrayCodec(),
//	}, stagefetch.WithLayout(layout.StrategyHierarchical))
//	if err != nil {
//		return err
//	}
//	splits, err := f.Fetch(ctx)
//	train := splits[cifar.DefaultTrainSplit]
//	img, err := train.At(0)
//
// # Source Fail-over
//
// A source that reports source.ErrUnavailable (not found, forbidden,
// unreachable host) is skipped and the next one is tried. Any other failure
// stops the fetch with a *SourceError. When every source is unavailable the
// last error is returned unchanged.
//
// # On-disk Layout
//
//	<base>/<split>/
//	    0meta                  committed manifest (JSON)
//	    0.bin 1.bin ...        flat layout
//	    cat/cat_0.npy ...      hierarchical layout
//
// A split is complete iff its 0meta file exists. The manifest is written to
// a temporary file and renamed into place after every record of the run has
// been persisted; a run that fails midway leaves no manifest behind.
package stagefetch
