package worker

import (
	"github.com/helpline/escalation-service/internal/events"
	"github.com/helpline/escalation-service/internal/service"
)

// StartNotificationWorker registers notification handlers on the
// dispatcher so responder alerts ride escalation events.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers(dispatcher)
}
