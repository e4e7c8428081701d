package goEnroll

import "sync"

// FormTopic selects which FormState changes a subscriber hears about.
type FormTopic string

const (
	TopicStep         FormTopic = "step"
	TopicAccountType  FormTopic = "accountType"
	TopicPhone        FormTopic = "phone"
	TopicPersonalInfo FormTopic = "personalInfo"
)

// FormState is the observable store behind an Enrollment. Subscribers are
// called synchronously after the store lock is released, in subscription
// order, with a copy of the data as of the change.
type FormState struct {
	mu     sync.Mutex
	data   FormData
	subs   map[FormTopic][]formSubscriber
	nextID uint64
}

type formSubscriber struct {
	id uint64
	fn func(FormData)
}

// NewFormState starts on the account-type step with nothing collected.
func NewFormState() *FormState {
	return &FormState{
		data: FormData{CurrentStep: StepAccountType},
		subs: make(map[FormTopic][]formSubscriber),
	}
}

// Data returns a copy of everything collected.
func (f *FormState) Data() FormData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

func (f *FormState) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.CurrentStep
}

func (f *FormState) Phone() PhoneRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.Phone
}

// SetStep moves the wizard. Setting the current step again notifies nobody.
func (f *FormState) SetStep(step Step) error {
	if !step.Valid() {
		return ErrInvalidStep
	}
	f.update(TopicStep, func(d *FormData) bool {
		if d.CurrentStep == step {
			return false
		}
		d.CurrentStep = step
		return true
	})
	return nil
}

func (f *FormState) SetAccountType(t AccountType) {
	f.update(TopicAccountType, func(d *FormData) bool {
		if d.AccountType == t {
			return false
		}
		d.AccountType = t
		return true
	})
}

// SetPhoneData replaces the phone record. It satisfies [PhoneRecorder].
func (f *FormState) SetPhoneData(r PhoneRecord) {
	f.update(TopicPhone, func(d *FormData) bool {
		if d.Phone == r {
			return false
		}
		d.Phone = r
		return true
	})
}

func (f *FormState) SetPersonalInfo(info PersonalInfo) {
	f.update(TopicPersonalInfo, func(d *FormData) bool {
		if d.PersonalInfo == info {
			return false
		}
		d.PersonalInfo = info
		return true
	})
}

// Subscribe registers fn for topic and returns a function that removes it.
func (f *FormState) Subscribe(topic FormTopic, fn func(FormData)) func() {
	if fn == nil {
		return func() {}
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[topic] = append(f.subs[topic], formSubscriber{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			list := f.subs[topic]
			for i, s := range list {
				if s.id == id {
					f.subs[topic] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

func (f *FormState) update(topic FormTopic, mutate func(*FormData) bool) {
	f.mu.Lock()
	if !mutate(&f.data) {
		f.mu.Unlock()
		return
	}
	snapshot := f.data
	subs := append([]formSubscriber(nil), f.subs[topic]...)
	f.mu.Unlock()

	for _, s := range subs {
		s.fn(snapshot)
	}
}
