package sqlinline

const QInsertGenerationJob = `--sql de32e33b-89fd-4d0a-bb71-b76f46d7b512
insert into generation_jobs(
  id,
  user_id,
  provider_job_id,
  provider,
  status,
  prompt,
  input_params,
  cost_in_credits,
  progress
)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, coalesce($7::jsonb, '{}'::jsonb), $8::int, 0);
`

const QSelectGenerationJob = `--sql 36fb880a-a533-40d9-8db0-47541ec8fd1e
select id, user_id, provider_job_id, provider, status, prompt, input_params,
       cost_in_credits, progress, coalesce(result_url, ''), coalesce(error_message, ''),
       created_at, updated_at
from generation_jobs
where id = $1;
`

const QSelectGenerationJobByProviderID = `--sql 2246fa0a-4d60-45ad-903c-76daab705d24
select id, user_id, provider_job_id, provider, status, prompt, input_params,
       cost_in_credits, progress, coalesce(result_url, ''), coalesce(error_message, ''),
       created_at, updated_at
from generation_jobs
where provider = $1 and provider_job_id = $2;
`

const QListGenerationJobs = `--sql 6a090ca7-a699-40b8-9efb-08a1014681bb
select id, user_id, provider_job_id, provider, status, prompt, input_params,
       cost_in_credits, progress, coalesce(result_url, ''), coalesce(error_message, ''),
       created_at, updated_at
from generation_jobs
where user_id = $1
order by created_at desc
limit $2;
`

const QMarkJobSucceeded = `--sql 30be94a2-c7f6-4423-b9d1-2cd06d6a5af7
update generation_jobs
set status = 'succeeded',
    progress = 100,
    result_url = $2,
    updated_at = now()
where id = $1
  and status not in ('succeeded', 'failed', 'canceled');
`

const QMarkJobFailed = `--sql a00e0f03-e6e0-48c3-882d-2c997a1fbd2c
update generation_jobs
set status = 'failed',
    error_message = $2,
    updated_at = now()
where id = $1
  and status not in ('succeeded', 'failed', 'canceled');
`

const QUpdateJobProgress = `--sql 44b5ce77-585d-4f4c-bdd7-46ecf5e39e60
update generation_jobs
set status = $2,
    progress = $3,
    updated_at = now()
where id = $1
  and status not in ('succeeded', 'failed', 'canceled');
`
