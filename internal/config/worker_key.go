package config

type WorkerKeyStruct struct {
	GradingJobStatusQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GradingJobStatusQueue: "grading_job_status_queue",
}
