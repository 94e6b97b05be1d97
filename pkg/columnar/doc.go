// Package columnar exports sealed batches as Apache Arrow records.
//
// Only live rows are exported: filtered rows and control rows (punctuations
// and low watermarks) are skipped. The schema is
//
//	sync_time  int64
//	other_time int64
//	<key>      optional, described by a PayloadField
//	<payload>  described by a PayloadField
//
// # Usage
//
//	exp := columnar.NewExporter[batch.Empty, float64](columnar.Float64Payload("value"))
//	rec, err := exp.Export(b)
//	defer rec.Release()
//	err = columnar.WriteIPC(w, compression.Zstd, rec)
package columnar
