// Package files discovers company export workbooks on disk.
//
// Downloads are saved as export_<SYMBOL>.xlsx; Discovery lists them so a
// directory can be reprocessed without fetching again:
//
//	discovery := files.NewDiscovery(paths.BaseDir)
//	workbooks, err := discovery.FindExportWorkbooks(paths.DownloadsDir)
//	for _, wb := range workbooks {
//	    // wb.Symbol, wb.Path
//	}
package files
