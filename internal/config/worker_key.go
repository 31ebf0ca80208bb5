package config

type WorkerKeyStruct struct {
	PersistResultsQueue string
	PersistAnswersQueue string
	PersistCheatsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue: "persist_results_queue",
	PersistAnswersQueue: "persist_answers_queue",
	PersistCheatsQueue:  "persist_cheats_queue",
}
