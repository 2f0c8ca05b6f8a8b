package tasks

// DefineTasks registers all available tasks on r
func DefineTasks(r *Registry) {
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	r.Register(SendPaymentReceiptTask.TaskID(), SendPaymentReceiptTask.HandleExecution)

	r.Register(NotifyStudioTask.TaskID(), NotifyStudioTask.HandleExecution)
	r.Register(PendingRequestsDigestTask.TaskID(), PendingRequestsDigestTask.HandleExecution)
}
