package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/neuro-rehab-portal/internal/clinician"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
	"github.com/hackgods/neuro-rehab-portal/internal/session"
)

func getSessionHandler(ctrl *session.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toSession(ctrl.Current()))
	}
}

func loginHandler(ctrl *session.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if _, ok := ctrl.Login(r.Context(), req.Name, rehab.ParseRole(req.Role), req.ID); !ok {
			writeError(w, http.StatusUnprocessableEntity, "invalid_login", "name is required and role must be clinician or patient")
			return
		}

		writeJSON(w, http.StatusOK, toSession(ctrl.Current()))
	}
}

func logoutHandler(ctrl *session.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl.Logout(r.Context())
		writeJSON(w, http.StatusOK, toSession(ctrl.Current()))
	}
}

// toSession renders the active view. Every variant is handled.
func toSession(v session.View) SessionResponse {
	switch cur := v.(type) {
	case session.ClinicianSession:
		return SessionResponse{View: "clinician", Identity: toIdentity(cur.Identity)}
	case session.PatientSession:
		return SessionResponse{View: "patient", Identity: toIdentity(cur.Identity)}
	case session.NoSession:
		return SessionResponse{View: "landing"}
	default:
		return SessionResponse{View: "landing"}
	}
}

// Clinician

func withClinician(ctrl *session.Controller, fn func(w http.ResponseWriter, r *http.Request, v *clinician.View)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := ctrl.Clinician()
		if err != nil {
			handleSessionError(w, err)
			return
		}
		fn(w, r, v)
	}
}

func overviewHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, v *clinician.View) {
		writeJSON(w, http.StatusOK, toOverview(v.Section(), v.Overview()))
	})
}

func listPatientsHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, v *clinician.View) {
		writeJSON(w, http.StatusOK, toPatients(v.Patients()))
	})
}

func listAppointmentsHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, v *clinician.View) {
		writeJSON(w, http.StatusOK, toAppointments(v.Appointments()))
	})
}

func navigateHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, v *clinician.View) {
		var req SectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := v.Navigate(clinician.Section(req.Section)); err != nil {
			writeError(w, http.StatusBadRequest, "unknown_section", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toSelection(v))
	})
}

func selectPatientHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, v *clinician.View) {
		v.SelectPatient(chi.URLParam(r, "id"))
		writeJSON(w, http.StatusOK, toSelection(v))
	})
}

func getSelectionHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, v *clinician.View) {
		writeJSON(w, http.StatusOK, toSelection(v))
	})
}

func clearSelectionHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, v *clinician.View) {
		v.ClearSelection()
		writeJSON(w, http.StatusOK, toSelection(v))
	})
}

func confirmAppointmentHandler(ctrl *session.Controller) http.HandlerFunc {
	return withClinician(ctrl, func(w http.ResponseWriter, r *http.Request, _ *clinician.View) {
		seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_seq", "seq must be an integer")
			return
		}

		appt, err := ctrl.ConfirmAppointment(r.Context(), seq)
		if err != nil {
			handleConfirmError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointment(appt))
	})
}

// Patient

func withPatient(ctrl *session.Controller, fn func(w http.ResponseWriter, r *http.Request, v *patient.View)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := ctrl.Patient()
		if err != nil {
			handleSessionError(w, err)
			return
		}
		fn(w, r, v)
	}
}

func tasksHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		writeJSON(w, http.StatusOK, toChecklist(v.Checklist()))
	})
}

func startCaptureHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		taskID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_task_id", "id must be an integer")
			return
		}

		snap, err := v.Capture().Start(r.Context(), taskID)
		if err != nil {
			handleCaptureError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCapture(snap))
	})
}

func openLensHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		snap, err := v.StartNextCapture(r.Context())
		if err != nil {
			handleCaptureError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCapture(snap))
	})
}

func captureStatusHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		writeJSON(w, http.StatusOK, toCapture(v.Capture().Snapshot()))
	})
}

func finishCaptureHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		if _, err := v.Capture().Finish(r.Context()); err != nil {
			handleCaptureError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toChecklist(v.Checklist()))
	})
}

func cancelCaptureHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		v.Capture().Cancel(r.Context())
		writeJSON(w, http.StatusOK, toCapture(v.Capture().Snapshot()))
	})
}

func transcriptHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		writeJSON(w, http.StatusOK, toTranscript(v.Conversation()))
	})
}

func sendMessageHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if _, err := v.Conversation().Send(r.Context(), req.Text); err != nil {
			if errors.Is(err, patient.ErrBlankMessage) {
				writeError(w, http.StatusUnprocessableEntity, "empty_message", "message text is required")
				return
			}
			writeError(w, http.StatusServiceUnavailable, "request_cancelled", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toTranscript(v.Conversation()))
	})
}

func requestAppointmentHandler(ctrl *session.Controller) http.HandlerFunc {
	return withPatient(ctrl, func(w http.ResponseWriter, r *http.Request, v *patient.View) {
		appt, err := v.RequestAppointment(r.Context())
		if err != nil {
			if errors.Is(err, patient.ErrRequestInFlight) {
				writeError(w, http.StatusConflict, "request_in_flight", err.Error())
				return
			}
			writeError(w, http.StatusServiceUnavailable, "request_cancelled", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, AppointmentSentResponse{
			Appointment: toAppointment(appt),
			Notice:      patient.AppointmentSentNotice,
		})
	})
}

// Error mapping

func handleSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "no_session", err.Error())
	case errors.Is(err, session.ErrWrongRole):
		writeError(w, http.StatusConflict, "wrong_role", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleConfirmError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, session.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleCaptureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, patient.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, patient.ErrTaskCompleted):
		writeError(w, http.StatusConflict, "task_completed", err.Error())
	case errors.Is(err, patient.ErrCaptureInProgress):
		writeError(w, http.StatusConflict, "capture_in_progress", err.Error())
	case errors.Is(err, patient.ErrNoActiveCapture):
		writeError(w, http.StatusConflict, "no_active_capture", err.Error())
	case errors.Is(err, patient.ErrCaptureIncomplete):
		writeError(w, http.StatusConflict, "capture_incomplete", err.Error())
	case errors.Is(err, patient.ErrCaptureAborted), errors.Is(err, patient.ErrCaptureClosed):
		writeError(w, http.StatusConflict, "capture_aborted", err.Error())
	case errors.Is(err, patient.ErrDeviceDenied):
		writeError(w, http.StatusForbidden, "camera_denied", patient.DeviceDeniedNotice)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
