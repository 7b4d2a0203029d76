package model

// Persisted state keys shared by every context.
const (
	KeyToken              = "token"
	KeyLegacyAuthToken    = "authToken"
	KeyUserEmail          = "userEmail"
	KeyProfilePictureURL  = "profilePictureUrl"
	KeyGeminiAPIKey       = "geminiApiKey"
	KeyIsTwitterConnected = "isTwitterConnected"
)
