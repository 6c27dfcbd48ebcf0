package main

import (
	"fmt"

	"github.com/on-the-ground/skadi_go/store"
)

type Movie struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
}

// ViewState is what the movie screen shows.
type ViewState interface{ viewState() }

type Loading struct{}

type DisplayMovies struct {
	Movies []Movie
}

type Failed struct {
	Reason string
}

func (Loading) viewState()       {}
func (DisplayMovies) viewState() {}
func (Failed) viewState()        {}

// Change is an event the reducer reacts to: user input or an action result.
type Change interface{ change() }

type MoviesLoaded struct {
	Movies []Movie
}

type LoadFailed struct {
	Reason string
}

type MovieClicked struct {
	Title string
}

type RefreshRequested struct{}

func (MoviesLoaded) change()     {}
func (LoadFailed) change()       {}
func (MovieClicked) change()     {}
func (RefreshRequested) change() {}

type Action interface{ action() }

// LoadMovies fetches the catalog. Fresh bypasses the cache.
type LoadMovies struct {
	Fresh bool
}

func (LoadMovies) action() {}

// PartitionKey serializes every load on one worker.
func (LoadMovies) PartitionKey() string {
	return "movies"
}

// Signal is a one-off UI event.
type Signal interface{ signal() }

type ShowToast struct {
	Text string
}

func (ShowToast) signal() {}

type (
	movieStore  = store.Store[ViewState, Change, Action, Signal]
	movieEffect = store.Effect[ViewState, Action, Signal]
)

var (
	stateOnly  = store.StateOnly[ViewState, Action, Signal]
	same       = store.Same[ViewState, Action, Signal]
	withAction = store.WithAction[ViewState, Action, Signal]
	signalFrom = store.SignalFrom[ViewState, Action, Signal]
)

func reduce(state ViewState, change Change) (movieEffect, error) {
	switch state := state.(type) {
	case Loading:
		switch change := change.(type) {
		case MoviesLoaded:
			return stateOnly(DisplayMovies{Movies: change.Movies}), nil
		case LoadFailed:
			return stateOnly(Failed{Reason: change.Reason}), nil
		case MovieClicked:
			return signalFrom(state, ShowToast{Text: "Movies are still loading"}), nil
		case RefreshRequested:
			return same(state), nil
		}
	case DisplayMovies:
		switch change := change.(type) {
		case MovieClicked:
			return signalFrom(state, ShowToast{Text: change.Title}), nil
		case RefreshRequested:
			return withAction(Loading{}, LoadMovies{Fresh: true}), nil
		}
	case Failed:
		switch change.(type) {
		case MovieClicked:
			return signalFrom(state, ShowToast{Text: "No movies to show"}), nil
		case RefreshRequested:
			return withAction(Loading{}, LoadMovies{Fresh: true}), nil
		}
	}
	return movieEffect{}, store.Unexpected(state, change)
}

// view is the JSON rendering of a ViewState.
type view struct {
	State  string  `json:"state"`
	Movies []Movie `json:"movies,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

func render(state ViewState) view {
	switch state := state.(type) {
	case Loading:
		return view{State: "loading"}
	case DisplayMovies:
		return view{State: "display_movies", Movies: state.Movies}
	case Failed:
		return view{State: "failed", Reason: state.Reason}
	default:
		panic(fmt.Sprintf("unknown view state %T", state))
	}
}
