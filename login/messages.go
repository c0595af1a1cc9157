package login

import "github.com/mues-io/muesd/event"

const (
	usernamePrompt = "login: "
	passwordPrompt = "password: "
)

func textEvent(text string) *event.Event {
	return event.New(event.KindOutputText, text)
}

func bannerEvent() *event.Event {
	return textEvent("Welcome.\n")
}

func promptEvent(prompt string) *event.Event {
	return textEvent(prompt)
}

func authFailureEvent() *event.Event {
	return textEvent("Authentication failure.\n")
}

func terseTerminationEvent() *event.Event {
	return textEvent("Too many failed attempts. Goodbye.\n")
}
