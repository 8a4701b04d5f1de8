package apperrors

// Users and onboarding
var (
	ErrUserNotFound    = New(CodeNotFound, "user", "user not found")
	ErrBlacklisted     = New(CodeForbidden, "user", "user is blacklisted")
	ErrClosedMode      = New(CodeForbidden, "onboarding", "registration is invitation only")
	ErrInviterNotFound = New(CodeNotFound, "referral", "inviter not found")
	ErrSelfReferral    = New(CodeValidation, "referral", "user cannot invite themselves")
	ErrInvalidDiscount = New(CodeValidation, "user", "discount must be between 0 and 100")
)

// Levels
var (
	ErrUnknownLevel       = New(CodeValidation, "level", "unknown level")
	ErrInsufficientLevel  = New(CodeForbidden, "level", "level does not allow this action")
	ErrLevelNotAllowed    = New(CodeForbidden, "level", "level cannot be assigned by this user")
	ErrNotYourReferral    = New(CodeForbidden, "level", "user is not your referral")
	ErrAlreadyAtLevel     = New(CodeConflict, "level", "user is already at this level")
	ErrQuotaExhausted     = New(CodeLimitExceeded, "level", "grant quota exhausted")
	ErrConcurrentLevelSet = New(CodeConflict, "level", "level changed concurrently")
)

// Promo codes
var (
	ErrPromoMalformed    = New(CodeValidation, "promo", "malformed promo code")
	ErrPromoNotFound     = New(CodeNotFound, "promo", "promo code not found")
	ErrPromoInactive     = New(CodeConflict, "promo", "promo code is inactive")
	ErrPromoExpired      = New(CodeConflict, "promo", "promo code expired")
	ErrPromoLimitReached = New(CodeLimitExceeded, "promo", "promo code usage limit reached")
	ErrPromoAlreadyUsed  = New(CodeConflict, "promo", "promo code already redeemed by this user")
	ErrPromoExists       = New(CodeConflict, "promo", "promo code already exists")
	ErrPromoInvalid      = New(CodeValidation, "promo", "invalid promo code definition")
)

// Purchases
var (
	ErrInvalidMonths      = New(CodeValidation, "purchase", "unsupported billing period")
	ErrNothingToPay       = New(CodeConflict, "purchase", "subscription is free for this user")
	ErrPurchaseNotFound   = New(CodeNotFound, "purchase", "purchase not found")
	ErrPurchaseNotPending = New(CodeConflict, "purchase", "purchase is not awaiting settlement")
)

// Admin
var (
	ErrInvalidCredentials = New(CodeUnauthorized, "admin", "invalid credentials")
	ErrInvalidSession     = New(CodeUnauthorized, "admin", "invalid or expired session")
	ErrInvalidSetting     = New(CodeValidation, "settings", "invalid setting value")
)

// Blacklist
var (
	ErrBlacklistInvalid  = New(CodeValidation, "blacklist", "telegram id or aura id is required")
	ErrBlacklistNotFound = New(CodeNotFound, "blacklist", "blacklist entry not found")
	ErrInvalidWebhook    = New(CodeUnauthorized, "webhook", "invalid webhook signature")
)
