package model

const (
	FlagNotFoundErrorCode    = "FLAG_NOT_FOUND"
	PayloadNotFoundErrorCode = "PAYLOAD_NOT_FOUND"
	GeneralErrorCode         = "GENERAL"
)

type NotificationType string

const (
	NotificationCreate NotificationType = "write"
	NotificationUpdate NotificationType = "update"
	NotificationDelete NotificationType = "delete"
)
