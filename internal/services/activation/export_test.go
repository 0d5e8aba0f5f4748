// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package activation

// SetHandleGenerator replaces the handle source.
func (s *Service) SetHandleGenerator(f func() (string, error)) {
	s.newHandle = f
}
