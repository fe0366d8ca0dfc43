package model

type ContentKind string

const (
	ContentKindText  ContentKind = "text"
	ContentKindImage ContentKind = "image"
	ContentKindAudio ContentKind = "audio"
	ContentKindVideo ContentKind = "video"
	ContentKindFile  ContentKind = "file"
)

// LoginStage is how far a single OAuth login attempt progressed.
type LoginStage string

const (
	LoginStageInitiated          LoginStage = "INITIATED"
	LoginStageCallbackReceived   LoginStage = "CALLBACK_RECEIVED"
	LoginStageCredentialObtained LoginStage = "CREDENTIAL_OBTAINED"
	LoginStageAccountDiscovered  LoginStage = "ACCOUNT_DISCOVERED"
	LoginStagePersisted          LoginStage = "PERSISTED"
	LoginStageNotified           LoginStage = "NOTIFIED"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusOverdue  SubscriptionStatus = "overdue"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)
