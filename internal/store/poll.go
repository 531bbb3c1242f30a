package store

import (
	"fmt"
	"slices"
)

// VotePoll records voterId's vote for an option of a poll message. With
// multiple answers disabled, voting for a new option moves the voter's
// existing vote; voting for an option the voter already chose is a no-op.
func (s *Store) VotePoll(convId, msgId string, option int, voterId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.findMessage(convId, msgId)
	if msg == nil {
		return fmt.Errorf("message %q not found in conversation %q", msgId, convId)
	}
	if msg.Poll == nil {
		return fmt.Errorf("message %q has no poll", msgId)
	}

	poll := msg.Poll
	if option < 0 || option >= len(poll.Options) {
		return fmt.Errorf("option %d out of range for poll with %d options", option, len(poll.Options))
	}

	if poll.Votes == nil {
		poll.Votes = make(map[int][]string)
	}

	if slices.Contains(poll.Votes[option], voterId) {
		return nil
	}

	if !poll.AllowMultipleAnswers {
		for idx, voters := range poll.Votes {
			if i := slices.Index(voters, voterId); i >= 0 {
				poll.Votes[idx] = slices.Delete(voters, i, i+1)
			}
		}
	}

	poll.Votes[option] = append(poll.Votes[option], voterId)
	return nil
}

// RetractVote removes voterId's vote for an option, if present.
func (s *Store) RetractVote(convId, msgId string, option int, voterId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.findMessage(convId, msgId)
	if msg == nil {
		return fmt.Errorf("message %q not found in conversation %q", msgId, convId)
	}
	if msg.Poll == nil {
		return fmt.Errorf("message %q has no poll", msgId)
	}

	voters := msg.Poll.Votes[option]
	if i := slices.Index(voters, voterId); i >= 0 {
		msg.Poll.Votes[option] = slices.Delete(voters, i, i+1)
	}

	return nil
}
