package domain

import "time"

type MetricsCollector interface {
	RecordCheck(result CheckResult, duration time.Duration)
	RecordProbeStart()
	RecordProbeDone()
	RecordBatch(size int, duration time.Duration)
	RecordGeoLookup(source string)
	RecordStoreError(op string)
	RecordExport(exporter string, err error)
	RecordSchedulerRun(err error)
}
