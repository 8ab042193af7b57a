package core

// CyclePot is the total disbursed to one recipient in one rotation: the sum
// of every participant's effective contribution for the cycle.
func CyclePot(base Money, participants []Participant) Money {
	var cents int64
	for _, p := range participants {
		cents += p.EffectiveContribution(base).Cents
	}
	return Money{Cents: cents}
}

// DynamicPot is the amount a specific participant is entitled to receive on
// their turn. The recipient gets the full cycle pot as currently configured;
// their own contribution is not subtracted. The participant argument scopes
// the value to one turn for display and payout purposes.
func DynamicPot(x *Xitique, _ Participant) Money {
	return CyclePot(x.BaseAmount, x.Participants)
}
