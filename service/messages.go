package service

import (
	"fmt"
	"time"
)

const (
	msgWelcome = "Welcome! 👋 This bot gates access to our private community based on token holdings.\n\n" +
		"Use /join to start the verification process."
	msgJoin = "Please send your wallet address to verify your holdings.\n\n" +
		"After sending your address, you'll need to sign a message to prove ownership."
	msgInvalidAddress   = "Invalid wallet address. Please send a 0x-prefixed address of 64 hex digits."
	msgInvalidSignature = "Invalid signature. Please try again by using /join"
	msgRestart          = "An error occurred. Please try again by using /join"
	msgRetryLater       = "An error occurred while verifying your wallet. Please try again later."
	msgIssuanceFailed   = "Your wallet was verified, but we could not create an invite link. " +
		"Please try again later by using /join"
	msgLinkUnavailable = "Verification by link is not available. Please use /join instead."
	msgRevoked         = "You have been removed from the group because you no longer meet the token requirement. " +
		"You can rejoin once you have the required tokens."
)

func msgSignPrompt(nonce string) string {
	return fmt.Sprintf("Please sign this message to verify wallet ownership:\n\n%s\n\n"+
		"Send the signature in your next message.", nonce)
}

func msgShortfall(required string) string {
	return fmt.Sprintf("Sorry, you do not meet the required token holdings. "+
		"You need at least %s to join the group.", required)
}

func msgVerified(link string, ttl time.Duration) string {
	return fmt.Sprintf("Verification successful! Here's your invite link to join the group:\n\n%s\n\n"+
		"This link will expire in %s and can only be used once.", link, humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}

func msgVerifyLink(url string) string {
	return fmt.Sprintf("Open this link to connect your wallet and sign the challenge:\n\n%s", url)
}
