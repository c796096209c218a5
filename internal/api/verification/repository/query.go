package verificationRepository

const (
	queryGetSubject = `
SELECT id, cohort, group_name, descriptor, reference_photo_key, descriptor_updated_at,
       last_verified_at, last_verification_outcome, last_verification_confidence,
       created_at, updated_at
FROM subjects
    WHERE id = :id`

	queryGetSubjectDescriptor = `
SELECT descriptor
FROM subjects
    WHERE id = :id`

	queryGetSubjectDescriptors = `
SELECT id, descriptor
FROM subjects
    WHERE id = ANY(:ids) AND descriptor IS NOT NULL`

	queryGetSubjectsByScope = `
SELECT id
FROM subjects
    WHERE (:cohort = '' OR cohort = :cohort)
      AND (:group_name = '' OR group_name = :group_name)
ORDER BY id`

	querySaveSubject = `
INSERT INTO subjects (id, cohort, group_name, descriptor, reference_photo_key, descriptor_updated_at, created_at)
VALUES (:id, :cohort, :group_name, :descriptor, :reference_photo_key, :descriptor_updated_at, :created_at)
ON CONFLICT (id) DO UPDATE
SET cohort = COALESCE(NULLIF(EXCLUDED.cohort, ''), subjects.cohort),
    group_name = COALESCE(NULLIF(EXCLUDED.group_name, ''), subjects.group_name),
    descriptor = EXCLUDED.descriptor,
    reference_photo_key = COALESCE(EXCLUDED.reference_photo_key, subjects.reference_photo_key),
    descriptor_updated_at = EXCLUDED.descriptor_updated_at,
    updated_at = EXCLUDED.descriptor_updated_at`

	queryRecordVerificationAudit = `
UPDATE subjects
SET last_verified_at = :verified_at,
    last_verification_outcome = :outcome,
    last_verification_confidence = :confidence,
    updated_at = :verified_at
    WHERE id = :id`

	queryLockSubject = `
SELECT id
FROM subjects
    WHERE id = :id
FOR UPDATE`

	queryLastProofTimestamp = `
SELECT COALESCE(MAX(server_timestamp), 0)
FROM verification_proofs
    WHERE subject_id = :subject_id`

	querySaveProof = `
INSERT INTO verification_proofs (id, subject_id, server_timestamp, is_match, confidence, descriptor_hash, signature, received_at)
SELECT CAST(:id AS VARCHAR), CAST(:subject_id AS VARCHAR), CAST(:server_timestamp AS BIGINT),
       CAST(:is_match AS BOOLEAN), CAST(:confidence AS DOUBLE PRECISION),
       CAST(:descriptor_hash AS CHAR(64)), CAST(:signature AS CHAR(64)), CAST(:received_at AS TIMESTAMPTZ)
    WHERE NOT EXISTS (
        SELECT 1
        FROM verification_proofs
            WHERE subject_id = :subject_id AND server_timestamp >= :server_timestamp
    )
ON CONFLICT (subject_id, server_timestamp) DO NOTHING`
)
